// Package memstore keeps ledgers, groups, logs and transfer codes in memory.
// It backs tests and STORAGE_BACKEND=memory.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/susu3304/debitbot/internal/ledger"
)

type Store struct {
	mu sync.RWMutex

	states map[string][]ledger.Entry
	groups map[string][]ledger.Group
	logs   map[string][]ledger.LogEntry
	chats  map[string]ledger.Chat
	codes  map[string]ledger.TransferCode

	now func() time.Time
}

func New() *Store {
	return &Store{
		states: make(map[string][]ledger.Entry),
		groups: make(map[string][]ledger.Group),
		logs:   make(map[string][]ledger.LogEntry),
		chats:  make(map[string]ledger.Chat),
		codes:  make(map[string]ledger.TransferCode),
		now:    time.Now,
	}
}

// WithClock replaces the timestamp source for new log entries.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.TransferCodes = (*Store)(nil)
)

func (s *Store) LoadState(_ context.Context, chatID string) (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.FromEntries(s.states[chatID]), nil
}

func (s *Store) SaveState(_ context.Context, chatID string, l *ledger.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = l.Entries()
	return nil
}

func (s *Store) SaveStates(_ context.Context, states map[string]*ledger.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range states {
		s.states[id] = l.Entries()
	}
	return nil
}

func (s *Store) LoadGroups(_ context.Context, chatID string) (*ledger.Groups, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.GroupsFrom(s.groups[chatID]), nil
}

func (s *Store) SaveGroups(_ context.Context, chatID string, g *ledger.Groups) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[chatID] = g.List()
	return nil
}

func (s *Store) SaveStateAndGroups(_ context.Context, chatID string, l *ledger.Ledger, g *ledger.Groups) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = l.Entries()
	s.groups[chatID] = g.List()
	return nil
}

func (s *Store) LoadLog(_ context.Context, chatID string, reverseIndex int) (*ledger.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := s.logs[chatID]
	i := len(logs) - 1 - reverseIndex
	if reverseIndex < 0 || i < 0 {
		return nil, ledger.ErrNoLog
	}
	e := logs[i]
	return &e, nil
}

func (s *Store) LoadLogs(_ context.Context, chatID string, limit int) ([]ledger.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := s.logs[chatID]
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	out := make([]ledger.LogEntry, len(logs))
	copy(out, logs)
	return out, nil
}

func (s *Store) SaveLog(_ context.Context, chatID, senderID, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[chatID] = append(s.logs[chatID], ledger.LogEntry{
		ID:        ulid.Make().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Command:   command,
		CreatedAt: s.now(),
	})
	return nil
}

func (s *Store) MarkUndone(_ context.Context, chatID, logID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs[chatID]
	for i := range logs {
		if logs[i].ID == logID {
			logs[i].Undone = true
			return nil
		}
	}
	return ledger.ErrNoLog
}

func (s *Store) SaveChat(_ context.Context, chat ledger.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chat.ID] = chat
	return nil
}

func (s *Store) GetChat(_ context.Context, chatID string) (*ledger.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, ledger.ErrChatNotFound
	}
	return &c, nil
}

func (s *Store) FindChatIDByDisplayName(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found []string
	for id, c := range s.chats {
		if c.Title == name {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", ledger.ErrChatNotFound
	case 1:
		return found[0], nil
	}
	return "", ledger.Errorf(ledger.KindDuplicateName, "More chats under the same name: %s", name)
}

func (s *Store) IssueTransferCode(_ context.Context, code ledger.TransferCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code.Code] = code
	return nil
}

func (s *Store) LookupTransferCode(_ context.Context, code string) (*ledger.TransferCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, ledger.ErrTransferCodeNotFound
	}
	return &c, nil
}

func (s *Store) MarkTransferCodeUsed(_ context.Context, code string) error {
	return s.setUsed(code, true)
}

func (s *Store) ReleaseTransferCode(_ context.Context, code string) error {
	return s.setUsed(code, false)
}

func (s *Store) setUsed(code string, used bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return ledger.ErrTransferCodeNotFound
	}
	c.Used = used
	s.codes[code] = c
	return nil
}

// PurgeTransferCodes drops codes created before cutoff and reports how many
// were removed.
func (s *Store) PurgeTransferCodes(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.codes {
		if c.CreatedAt.Before(cutoff) {
			delete(s.codes, k)
			n++
		}
	}
	return n, nil
}
