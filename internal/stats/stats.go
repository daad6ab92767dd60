// Package stats derives read-only statistics from a chat's command log and
// current balances.
package stats

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/susu3304/debitbot/internal/ledger"
)

var ErrUnknownStat = errors.New("stats: unknown statistic")

// Needs declares which data a calculator reads, so only that is loaded.
type Needs struct {
	Logs  bool
	State bool
}

// Input carries the data a calculator asked for. Fields it did not ask for
// are nil.
type Input struct {
	Logs  []ledger.LogEntry
	State *ledger.Ledger
}

// Result renders itself for display.
type Result interface {
	Format() string
}

type Calculator struct {
	Key       string
	Title     string
	Needs     Needs
	Calculate func(Input) (Result, error)
}

// Source loads calculator input on first use and caches it.
type Source struct {
	LoadLogs  func() ([]ledger.LogEntry, error)
	LoadState func() (*ledger.Ledger, error)

	logs        []ledger.LogEntry
	logsLoaded  bool
	state       *ledger.Ledger
	stateLoaded bool
}

func (s *Source) input(n Needs) (Input, error) {
	var in Input
	if n.Logs {
		if !s.logsLoaded {
			if s.LoadLogs == nil {
				return in, errors.New("stats: no log source")
			}
			logs, err := s.LoadLogs()
			if err != nil {
				return in, fmt.Errorf("load logs: %w", err)
			}
			s.logs, s.logsLoaded = logs, true
		}
		in.Logs = s.logs
	}
	if n.State {
		if !s.stateLoaded {
			if s.LoadState == nil {
				return in, errors.New("stats: no state source")
			}
			st, err := s.LoadState()
			if err != nil {
				return in, fmt.Errorf("load state: %w", err)
			}
			s.state, s.stateLoaded = st, true
		}
		in.State = s.state
	}
	return in, nil
}

// Registry holds calculators by key in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	calcs map[string]Calculator
}

func NewRegistry() *Registry {
	return &Registry{calcs: make(map[string]Calculator)}
}

// Default returns a registry with every built-in calculator.
func Default() *Registry {
	r := NewRegistry()
	for _, c := range Builtins() {
		r.Register(c)
	}
	return r
}

// Register adds c, replacing any calculator with the same key in place.
func (r *Registry) Register(c Calculator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calcs[c.Key]; !ok {
		r.order = append(r.order, c.Key)
	}
	r.calcs[c.Key] = c
}

func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calcs[key]; !ok {
		return
	}
	delete(r.calcs, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) Get(key string) (Calculator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calcs[key]
	return c, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) snapshot(keys []string) []Calculator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if keys == nil {
		keys = r.order
	}
	out := make([]Calculator, 0, len(keys))
	for _, k := range keys {
		if c, ok := r.calcs[k]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Run formats a single statistic. Calculator failures are rendered inline;
// only an unknown key or a failed data load is returned as an error.
func (r *Registry) Run(key string, src *Source) (string, error) {
	c, ok := r.Get(key)
	if !ok {
		return "", ErrUnknownStat
	}
	text, _, err := evaluate(c, src)
	return text, err
}

// RunAll formats every registered statistic under its title.
func (r *Registry) RunAll(src *Source) (string, error) {
	calcs := r.snapshot(nil)
	parts := make([]string, 0, len(calcs))
	for _, c := range calcs {
		text, ok, err := evaluate(c, src)
		if err != nil {
			return "", err
		}
		if ok {
			text = fmt.Sprintf("📊 %s:\n%s", c.Title, text)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"+strings.Repeat("=", 30)+"\n\n"), nil
}

var summaryKeys = []string{"volume", "count", "total"}

// Summary formats the headline statistics, leaving out failed ones.
func (r *Registry) Summary(src *Source) (string, error) {
	var parts []string
	for _, c := range r.snapshot(summaryKeys) {
		text, ok, err := evaluate(c, src)
		if err != nil {
			return "", err
		}
		if ok {
			parts = append(parts, fmt.Sprintf("📈 %s:\n%s", c.Title, text))
		}
	}
	if len(parts) == 0 {
		return "No statistics available", nil
	}
	return strings.Join(parts, "\n\n"+strings.Repeat("=", 20)+"\n\n"), nil
}

func evaluate(c Calculator, src *Source) (text string, ok bool, err error) {
	in, err := src.input(c.Needs)
	if err != nil {
		return "", false, err
	}
	defer func() {
		if p := recover(); p != nil {
			text, ok = failed(c, fmt.Errorf("%v", p)), false
		}
	}()
	res, err := c.Calculate(in)
	if err != nil {
		return failed(c, err), false, nil
	}
	return res.Format(), true, nil
}

func failed(c Calculator, err error) string {
	return fmt.Sprintf("❌ %s: Error calculating (%v)", c.Title, err)
}
