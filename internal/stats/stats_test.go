package stats

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/susu3304/debitbot/internal/ledger"
)

func logOf(commands ...string) []ledger.LogEntry {
	base := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	out := make([]ledger.LogEntry, len(commands))
	for i, c := range commands {
		out[i] = ledger.LogEntry{ID: c, Command: c, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func sourceOf(logs []ledger.LogEntry, state *ledger.Ledger) (*Source, *int, *int) {
	var logLoads, stateLoads int
	return &Source{
		LoadLogs: func() ([]ledger.LogEntry, error) {
			logLoads++
			return logs, nil
		},
		LoadState: func() (*ledger.Ledger, error) {
			stateLoads++
			return state, nil
		},
	}, &logLoads, &stateLoads
}

func TestBuiltins(t *testing.T) {
	logs := logOf(
		"t ana ivo 30 marko 20",
		"t ivo ana 5",
		"td marko ana ivo 90",
		"na luka",
		"t ana ivo 10",
	)
	logs[4].Undone = true
	state := ledger.New()
	state.Set("Ana", decimal.RequireFromString("45"))
	state.Set("Ivo", decimal.RequireFromString("-55"))
	state.Set("Marko", decimal.RequireFromString("10"))
	state.Set("Luka", decimal.Zero)

	tests := []struct {
		key  string
		want string
	}{
		{"volume", "Ana: 50.00\nIvo: 5.00"},
		{"count", "Ana: 1 transactions\nIvo: 1 transactions\nMarko: 1 transactions"},
		{"interactions", "Ana ↔ Ivo: 2 interactions\nIvo ↔ Ana: 2 interactions\nMarko ↔ Ana: 1 interactions"},
		{"commands", "t: 3 times\ntd: 1 times\nna: 1 times"},
		{"total", "Total amount transferred: 145.00"},
		{"average", "Ana: 25.00 avg\nIvo: 5.00 avg"},
		{"biggest", "Ana: 50.00 (on 2026-03-01 18:30)"},
		{"activity", "Ana: Minimal (2 commands)\nIvo: Minimal (1 commands)\nMarko: Minimal (1 commands)\nLuka: Minimal (1 commands)"},
		{"debt", "💸 Biggest Debtor: Ivo (-55.00)\n💰 Biggest Creditor: Ana (45.00)\n📊 Total Debt: -55.00 (1 users)\n📈 Total Credit: 55.00 (2 users)"},
		{"balance", "👥 Total Users: 4\n💰 Total Balance: 0.00\n📊 Average Balance: 0.00"},
		{"consistency", "✅ Data Accuracy: 100.0%\n🎯 Active Users: 3\n💸 Users w/ Transactions: 3\n💰 Users w/ Balance: 3"},
		{"generous", "🏆 Ana: 2 gifts, 50.00 total, 25.00 avg\n🏆 Ivo: 1 gifts, 5.00 total, 5.00 avg"},
	}

	r := Default()
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			src, _, _ := sourceOf(logs, state)
			got, err := r.Run(tt.key, src)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Run(%q) =\n%s\nwant\n%s", tt.key, got, tt.want)
			}
		})
	}
}

func TestEmptyData(t *testing.T) {
	r := Default()
	src, _, _ := sourceOf(nil, ledger.New())
	got, err := r.Run("volume", src)
	if err != nil {
		t.Fatal(err)
	}
	if got != "No transaction data available" {
		t.Errorf("Run(volume) = %q", got)
	}
}

func TestLazyLoading(t *testing.T) {
	r := Default()
	src, logLoads, stateLoads := sourceOf(logOf("t ana ivo 1"), ledger.New())
	if _, err := r.Run("debt", src); err != nil {
		t.Fatal(err)
	}
	if *logLoads != 0 || *stateLoads != 1 {
		t.Errorf("after debt: log loads %d, state loads %d", *logLoads, *stateLoads)
	}
	if _, err := r.RunAll(src); err != nil {
		t.Fatal(err)
	}
	if *logLoads != 1 || *stateLoads != 1 {
		t.Errorf("after RunAll: log loads %d, state loads %d", *logLoads, *stateLoads)
	}
}

func TestFailuresAreInline(t *testing.T) {
	r := NewRegistry()
	r.Register(Calculator{Key: "boom", Title: "Boom", Calculate: func(Input) (Result, error) {
		panic("nil map")
	}})
	r.Register(Calculator{Key: "err", Title: "Err", Calculate: func(Input) (Result, error) {
		return nil, errors.New("bad data")
	}})
	r.Register(Calculator{Key: "ok", Title: "Ok", Calculate: func(Input) (Result, error) {
		return totalResult(decimal.NewFromInt(3)), nil
	}})

	src, _, _ := sourceOf(nil, nil)
	got, err := r.RunAll(src)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	for _, want := range []string{
		"❌ Boom: Error calculating (nil map)",
		"❌ Err: Error calculating (bad data)",
		"📊 Ok:\nTotal amount transferred: 3.00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RunAll() missing %q in\n%s", want, got)
		}
	}
}

func TestLoadFailureIsReturned(t *testing.T) {
	r := Default()
	src := &Source{LoadLogs: func() ([]ledger.LogEntry, error) { return nil, errors.New("db down") }}
	if _, err := r.Run("volume", src); err == nil {
		t.Error("Run() should surface a load failure")
	}
}

func TestRegistry(t *testing.T) {
	r := Default()
	if _, err := r.Run("nope", &Source{}); !errors.Is(err, ErrUnknownStat) {
		t.Errorf("Run(nope) error = %v", err)
	}
	r.Remove("volume")
	if _, ok := r.Get("volume"); ok {
		t.Error("volume still registered after Remove")
	}
	names := r.Names()
	if len(names) != len(Builtins())-1 || names[0] != "count" {
		t.Errorf("Names() = %v", names)
	}
}

func TestSummarySkipsFailures(t *testing.T) {
	r := NewRegistry()
	r.Register(Calculator{Key: "volume", Title: "Transaction Volume", Needs: Needs{Logs: true}, Calculate: volume})
	r.Register(Calculator{Key: "count", Title: "Transaction Count", Calculate: func(Input) (Result, error) {
		return nil, errors.New("broken")
	}})
	src, _, _ := sourceOf(logOf("t ana ivo 3"), nil)
	got, err := r.Summary(src)
	if err != nil {
		t.Fatal(err)
	}
	if got != "📈 Transaction Volume:\nAna: 3.00" {
		t.Errorf("Summary() = %q", got)
	}
}
