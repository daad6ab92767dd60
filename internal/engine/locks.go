package engine

import "sync"

// lockTable hands out one RWMutex per chat. Entries live for the life of
// the process.
type lockTable struct {
	mu    sync.Mutex
	chats map[string]*sync.RWMutex
}

func newLockTable() *lockTable {
	return &lockTable{chats: make(map[string]*sync.RWMutex)}
}

func (t *lockTable) get(chatID string) *sync.RWMutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.chats[chatID]
	if !ok {
		m = &sync.RWMutex{}
		t.chats[chatID] = m
	}
	return m
}

func (t *lockTable) lock(chatID string) func() {
	m := t.get(chatID)
	m.Lock()
	return m.Unlock
}

func (t *lockTable) rlock(chatID string) func() {
	m := t.get(chatID)
	m.RLock()
	return m.RUnlock
}

// lockPair write-locks two distinct chats in id order.
func (t *lockTable) lockPair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	ua := t.lock(a)
	ub := t.lock(b)
	return func() {
		ub()
		ua()
	}
}
