// Package ledger holds the per-chat balance ledger, member groups, the
// command log record and the storage contract the engine relies on.
package ledger

import (
	"github.com/shopspring/decimal"
)

// Ledger maps member names to balances. Iteration follows insertion order,
// which is also the order the imbalance fix uses.
type Ledger struct {
	names    []string
	balances map[string]decimal.Decimal
}

// Entry is one member row.
type Entry struct {
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

func New() *Ledger {
	return &Ledger{balances: make(map[string]decimal.Decimal)}
}

// FromEntries builds a ledger in the order given. Later duplicates overwrite
// earlier values without moving them.
func FromEntries(entries []Entry) *Ledger {
	l := New()
	for _, e := range entries {
		l.Set(e.Name, e.Balance)
	}
	return l
}

func (l *Ledger) Len() int { return len(l.names) }

func (l *Ledger) Has(name string) bool {
	_, ok := l.balances[name]
	return ok
}

// Names returns member names in ledger order.
func (l *Ledger) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

func (l *Ledger) Balance(name string) decimal.Decimal {
	return l.balances[name]
}

// Set stores v rounded to cents, appending name if it is new.
func (l *Ledger) Set(name string, v decimal.Decimal) {
	if _, ok := l.balances[name]; !ok {
		l.names = append(l.names, name)
	}
	l.balances[name] = v.Round(2)
}

func (l *Ledger) Add(name string, delta decimal.Decimal) {
	l.Set(name, l.balances[name].Add(delta))
}

func (l *Ledger) Remove(name string) bool {
	if _, ok := l.balances[name]; !ok {
		return false
	}
	delete(l.balances, name)
	for i, n := range l.names {
		if n == name {
			l.names = append(l.names[:i], l.names[i+1:]...)
			break
		}
	}
	return true
}

// Rename moves a balance to a new key, keeping the member's position.
func (l *Ledger) Rename(oldName, newName string) bool {
	v, ok := l.balances[oldName]
	if !ok || l.Has(newName) {
		return false
	}
	delete(l.balances, oldName)
	l.balances[newName] = v
	for i, n := range l.names {
		if n == oldName {
			l.names[i] = newName
			break
		}
	}
	return true
}

func (l *Ledger) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, n := range l.names {
		sum = sum.Add(l.balances[n])
	}
	return sum
}

func (l *Ledger) Reset() {
	for _, n := range l.names {
		l.balances[n] = decimal.Zero
	}
}

// Scale multiplies every balance by m and rounds to cents. The caller is
// expected to run FixImbalance afterwards.
func (l *Ledger) Scale(m decimal.Decimal) {
	for _, n := range l.names {
		l.balances[n] = l.balances[n].Mul(m).Round(2)
	}
}

func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.names))
	for _, n := range l.names {
		out = append(out, Entry{Name: n, Balance: l.balances[n]})
	}
	return out
}

func (l *Ledger) Clone() *Ledger {
	return FromEntries(l.Entries())
}
