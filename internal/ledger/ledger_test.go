package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ledgerOf(pairs ...string) *Ledger {
	l := New()
	for i := 0; i+1 < len(pairs); i += 2 {
		l.Set(pairs[i], d(pairs[i+1]))
	}
	return l
}

func TestFixImbalance(t *testing.T) {
	tests := []struct {
		name    string
		ledger  *Ledger
		want    []string
		changed bool
	}{
		{
			name:    "balanced ledger untouched",
			ledger:  ledgerOf("A", "10", "B", "-10"),
			want:    []string{"10.00", "-10.00"},
			changed: false,
		},
		{
			name:    "even difference",
			ledger:  ledgerOf("A", "10", "B", "10", "C", "10"),
			want:    []string{"0.00", "0.00", "0.00"},
			changed: true,
		},
		{
			name:    "positive remainder taken from first members",
			ledger:  ledgerOf("A", "0.05", "B", "0", "C", "0"),
			want:    []string{"0.03", "-0.02", "-0.01"},
			changed: true,
		},
		{
			name:    "negative difference",
			ledger:  ledgerOf("A", "-0.05", "B", "0", "C", "0"),
			want:    []string{"-0.04", "0.02", "0.02"},
			changed: true,
		},
		{
			name:    "empty ledger",
			ledger:  New(),
			want:    nil,
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := tt.ledger.FixImbalance()
			if changed != tt.changed {
				t.Errorf("FixImbalance() changed = %v, want %v", changed, tt.changed)
			}
			if !tt.ledger.Sum().IsZero() {
				t.Errorf("Sum() = %s, want 0", tt.ledger.Sum())
			}
			for i, name := range tt.ledger.Names() {
				if got := tt.ledger.Balance(name).StringFixed(2); got != tt.want[i] {
					t.Errorf("balance of %s = %s, want %s", name, got, tt.want[i])
				}
			}
		})
	}
}

func TestFixImbalanceAlwaysZero(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for diff := int64(-23); diff <= 23; diff++ {
			l := New()
			for i := 0; i < n; i++ {
				l.Set(string(rune('A'+i)), decimal.Zero)
			}
			l.Set("A", decimal.New(diff, -2))
			l.FixImbalance()
			if !l.Sum().IsZero() {
				t.Fatalf("n=%d diff=%d: sum %s after fix", n, diff, l.Sum())
			}
		}
	}
}

func TestFixImbalanceLargeSums(t *testing.T) {
	tests := []struct {
		name   string
		ledger *Ledger
	}{
		{"beyond int64 cents", ledgerOf("A", "99999999999999999999", "B", "1")},
		{"large negative", ledgerOf("A", "-123456789012345678901.37", "B", "0", "C", "0")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.ledger.FixImbalance() {
				t.Fatal("FixImbalance() reported no change")
			}
			if !tt.ledger.Sum().IsZero() {
				t.Errorf("Sum() = %s, want 0", tt.ledger.Sum())
			}
		})
	}
}

func TestCheckRange(t *testing.T) {
	if err := ledgerOf("A", "999999999999.99", "B", "-999999999999.99").CheckRange(); err != nil {
		t.Errorf("CheckRange() at the limit = %v", err)
	}
	err := ledgerOf("A", "1000000000000", "B", "-1000000000000").CheckRange()
	if !errors.Is(err, ErrInvalidArguments) {
		t.Errorf("CheckRange() over the limit = %v, want InvalidArguments", err)
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		weights []string
		want    []string
	}{
		{"even", "90", []string{"1", "1", "1"}, []string{"30", "30", "30"}},
		{"left-over cents go first", "100", []string{"1", "1", "1"}, []string{"33.34", "33.33", "33.33"}},
		{"weighted", "100", []string{"2", "1", "1"}, []string{"50", "25", "25"}},
		{"negative mirrors positive", "-100", []string{"1", "1", "1"}, []string{"-33.34", "-33.33", "-33.33"}},
		{"fractional weights", "10", []string{"0.5", "1.5"}, []string{"2.5", "7.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := make([]decimal.Decimal, len(tt.weights))
			for i, w := range tt.weights {
				weights[i] = d(w)
			}
			got := Allocate(d(tt.total), weights)
			sum := decimal.Zero
			for i := range got {
				if !got[i].Equal(d(tt.want[i])) {
					t.Errorf("share %d = %s, want %s", i, got[i], tt.want[i])
				}
				sum = sum.Add(got[i])
			}
			if !sum.Equal(d(tt.total)) {
				t.Errorf("shares sum to %s, want %s", sum, tt.total)
			}
		})
	}
}

func TestRender(t *testing.T) {
	l := ledgerOf("Alice", "50", "Bob", "-30", "Christopher", "-20", "Dan", "0")
	want := "Bob         -30.00\n" +
		"Christopher -20.00\n" +
		"Dan           0.00\n" +
		"Alice       +50.00"
	if got := l.Render(); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
	if got := New().Render(); got != "" {
		t.Errorf("Render() on empty ledger = %q, want empty", got)
	}
}

func TestRenameKeepsPosition(t *testing.T) {
	l := ledgerOf("A", "1", "B", "2", "C", "-3")
	if !l.Rename("B", "Bea") {
		t.Fatal("Rename() = false, want true")
	}
	names := l.Names()
	if names[1] != "Bea" || !l.Balance("Bea").Equal(d("2")) || l.Has("B") {
		t.Errorf("after rename names = %v, Bea = %s", names, l.Balance("Bea"))
	}
	if l.Rename("A", "C") {
		t.Error("Rename() onto an existing name should fail")
	}
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"alice": "Alice",
		"BOB":   "Bob",
		"mArKo": "Marko",
		"željko": "Željko",
		"":      "",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Alice", 20); err != nil {
		t.Errorf("ValidateName(Alice) = %v", err)
	}
	for _, bad := range []string{"", "A1", "A-B", "Abcdefghijklmnopqrstu"} {
		err := ValidateName(bad, 20)
		if !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("ValidateName(%q) = %v, want InvalidArguments", bad, err)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(KindForbiddenAction, "Balance not 0: %s", "Bob")
	if !errors.Is(err, ErrForbiddenAction) {
		t.Error("errors.Is should match the kind sentinel")
	}
	if errors.Is(err, ErrUnknownMember) {
		t.Error("errors.Is matched the wrong kind")
	}
	if err.Error() != "Balance not 0: Bob" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestGroupsRenameMember(t *testing.T) {
	g := NewGroups()
	g.Set("FLAT", []string{"Ana", "Bob"})
	g.Set("TRIP", []string{"Bob", "Cid"})
	if n := g.RenameMember("Bob", "Rob"); n != 2 {
		t.Errorf("RenameMember() = %d, want 2", n)
	}
	want := "FLAT - Ana, Rob\nTRIP - Rob, Cid"
	if got := g.Render(); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
	g.Remove("FLAT")
	if g.Has("FLAT") || g.Len() != 1 {
		t.Errorf("Remove() left %v", g.Keywords())
	}
}
