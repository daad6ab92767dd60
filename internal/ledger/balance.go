package ledger

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -2)

// MaxAmount is the largest absolute balance a ledger can store.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// InRange reports whether v fits in a stored balance.
func InRange(v decimal.Decimal) bool {
	return v.Abs().LessThanOrEqual(MaxAmount)
}

// CheckRange returns an InvalidArguments error naming the first member whose
// balance does not fit.
func (l *Ledger) CheckRange() error {
	for _, name := range l.names {
		if !InRange(l.balances[name]) {
			return Errorf(KindInvalidArguments, "Amount out of range for %s", name)
		}
	}
	return nil
}

// FixImbalance brings the ledger sum back to exactly zero. Every member is
// shifted by the floored per-member share of the difference and the leftover
// cents are taken one each from the first members in ledger order. It
// reports whether anything changed.
func (l *Ledger) FixImbalance() bool {
	if len(l.names) == 0 {
		return false
	}
	diff := l.Sum().Shift(2).Round(0)
	if diff.IsZero() {
		return false
	}
	n := decimal.NewFromInt(int64(len(l.names)))
	q, r := diff.QuoRem(n, 0)
	if r.IsNegative() {
		q = q.Sub(decimal.NewFromInt(1))
		r = r.Add(n)
	}
	share := q.Shift(-2)
	left := r.IntPart()
	for i, name := range l.names {
		v := l.balances[name].Sub(share)
		if int64(i) < left {
			v = v.Sub(cent)
		}
		l.balances[name] = v
	}
	return true
}

// Allocate splits total into cent-exact shares proportional to weights.
// Shares are floored and the left-over cents go one each to the first
// entries. The split is computed on the absolute value so that
// Allocate(-x, w) is exactly the negation of Allocate(x, w). Weights must be
// positive.
func Allocate(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	if len(weights) == 0 {
		return shares
	}
	cents := total.Abs().Shift(2).Round(0)
	sumW := decimal.Zero
	for _, w := range weights {
		sumW = sumW.Add(w)
	}
	allocated := decimal.Zero
	for i, w := range weights {
		shares[i] = cents.Mul(w).Div(sumW).Floor()
		allocated = allocated.Add(shares[i])
	}
	left := cents.Sub(allocated).IntPart()
	for i := int64(0); i < left && i < int64(len(shares)); i++ {
		shares[i] = shares[i].Add(decimal.NewFromInt(1))
	}
	neg := total.IsNegative()
	for i := range shares {
		shares[i] = shares[i].Shift(-2)
		if neg {
			shares[i] = shares[i].Neg()
		}
	}
	return shares
}

// FormatAmount renders a balance with two decimals and an explicit sign for
// non-zero values.
func FormatAmount(v decimal.Decimal) string {
	s := v.StringFixed(2)
	if v.IsPositive() {
		return "+" + s
	}
	return s
}

// Render lists members sorted by ascending balance, names left-aligned and
// amounts right-aligned. Equal balances keep ledger order.
func (l *Ledger) Render() string {
	entries := l.Entries()
	if len(entries) == 0 {
		return ""
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Balance.LessThan(entries[j].Balance)
	})
	amounts := make([]string, len(entries))
	nameWidth, amountWidth := 0, 0
	for i, e := range entries {
		amounts[i] = FormatAmount(e.Balance)
		if w := utf8.RuneCountInString(e.Name); w > nameWidth {
			nameWidth = w
		}
		if w := len(amounts[i]); w > amountWidth {
			amountWidth = w
		}
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		pad := nameWidth - utf8.RuneCountInString(e.Name)
		fmt.Fprintf(&b, "%s%s %*s", e.Name, strings.Repeat(" ", pad), amountWidth, amounts[i])
	}
	return b.String()
}
