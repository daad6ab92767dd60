package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/susu3304/debitbot/internal/expr"
	"github.com/susu3304/debitbot/internal/ledger"
)

const noTransactions = "No transaction data available"

// Builtins returns the stock calculators in display order.
func Builtins() []Calculator {
	logsOnly := Needs{Logs: true}
	return []Calculator{
		{Key: "volume", Title: "Transaction Volume", Needs: logsOnly, Calculate: volume},
		{Key: "count", Title: "Transaction Count", Needs: logsOnly, Calculate: count},
		{Key: "interactions", Title: "User Interactions", Needs: logsOnly, Calculate: interactions},
		{Key: "commands", Title: "Command Usage", Needs: logsOnly, Calculate: commandUsage},
		{Key: "total", Title: "Total Amount Transferred", Needs: logsOnly, Calculate: totalTransferred},
		{Key: "average", Title: "Average Transaction Size", Needs: logsOnly, Calculate: average},
		{Key: "biggest", Title: "Biggest Spender", Needs: logsOnly, Calculate: biggest},
		{Key: "activity", Title: "User Activity Levels", Needs: logsOnly, Calculate: activity},
		{Key: "debt", Title: "Debt & Credit Analysis", Needs: Needs{State: true}, Calculate: debt},
		{Key: "balance", Title: "Current Balance Summary", Needs: Needs{State: true}, Calculate: balanceSummary},
		{Key: "consistency", Title: "Data Consistency Analysis", Needs: Needs{Logs: true, State: true}, Calculate: consistency},
		{Key: "generous", Title: "Most Generous Users", Needs: logsOnly, Calculate: generous},
	}
}

// tally accumulates per-name values, remembering first-seen order.
type tally struct {
	order  []string
	values map[string]decimal.Decimal
	counts map[string]int
}

func newTally() *tally {
	return &tally{values: make(map[string]decimal.Decimal), counts: make(map[string]int)}
}

func (t *tally) add(name string, v decimal.Decimal, n int) {
	if _, ok := t.counts[name]; !ok {
		t.order = append(t.order, name)
	}
	t.values[name] = t.values[name].Add(v)
	t.counts[name] += n
}

type row struct {
	Name  string
	Value decimal.Decimal
	Count int
}

// rows lists the tally sorted by less, first-seen order breaking ties.
func (t *tally) rows(less func(a, b row) bool) []row {
	out := make([]row, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, row{Name: n, Value: t.values[n], Count: t.counts[n]})
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func byValueDesc(a, b row) bool { return a.Value.GreaterThan(b.Value) }
func byCountDesc(a, b row) bool { return a.Count > b.Count }

// lines renders rows with format, or empty when there are none.
type lines struct {
	rows   []row
	empty  string
	format func(row) string
}

func (l lines) Format() string {
	if len(l.rows) == 0 {
		return l.empty
	}
	out := make([]string, len(l.rows))
	for i, r := range l.rows {
		out[i] = l.format(r)
	}
	return strings.Join(out, "\n")
}

func simpleTransactions(logs []ledger.LogEntry) []transaction {
	var out []transaction
	for _, tx := range transactions(logs) {
		if tx.Code == "t" {
			out = append(out, tx)
		}
	}
	return out
}

func volume(in Input) (Result, error) {
	t := newTally()
	for _, tx := range simpleTransactions(in.Logs) {
		t.add(tx.Payer, tx.Total, 1)
	}
	return lines{
		rows:   t.rows(byValueDesc),
		empty:  noTransactions,
		format: func(r row) string { return fmt.Sprintf("%s: %s", r.Name, r.Value.StringFixed(2)) },
	}, nil
}

func count(in Input) (Result, error) {
	t := newTally()
	for _, tx := range transactions(in.Logs) {
		t.add(tx.Payer, decimal.Zero, 1)
	}
	return lines{
		rows:   t.rows(byCountDesc),
		empty:  noTransactions,
		format: func(r row) string { return fmt.Sprintf("%s: %d transactions", r.Name, r.Count) },
	}, nil
}

type interactionResult struct {
	order []string
	pairs map[string]*tally
}

func (r interactionResult) Format() string {
	var out []string
	for _, user := range r.order {
		top := r.pairs[user].rows(byCountDesc)
		if len(top) == 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%s ↔ %s: %d interactions", user, top[0].Name, top[0].Count))
	}
	if len(out) == 0 {
		return "No interaction data available"
	}
	return strings.Join(out, "\n")
}

func interactions(in Input) (Result, error) {
	res := interactionResult{pairs: make(map[string]*tally)}
	touch := func(a, b string) {
		t, ok := res.pairs[a]
		if !ok {
			t = newTally()
			res.pairs[a] = t
			res.order = append(res.order, a)
		}
		t.add(b, decimal.Zero, 1)
	}
	for _, tx := range simpleTransactions(in.Logs) {
		for _, p := range tx.Payees {
			touch(tx.Payer, p)
			touch(p, tx.Payer)
		}
	}
	return res, nil
}

func commandUsage(in Input) (Result, error) {
	t := newTally()
	for _, e := range in.Logs {
		code, _ := expr.ParseCommand(e.Command)
		if code != "" {
			t.add(code, decimal.Zero, 1)
		}
	}
	return lines{
		rows:   t.rows(byCountDesc),
		empty:  "No command data available",
		format: func(r row) string { return fmt.Sprintf("%s: %d times", r.Name, r.Count) },
	}, nil
}

type totalResult decimal.Decimal

func (r totalResult) Format() string {
	return "Total amount transferred: " + decimal.Decimal(r).StringFixed(2)
}

func totalTransferred(in Input) (Result, error) {
	total := decimal.Zero
	for _, tx := range transactions(in.Logs) {
		if tx.Code == "t" {
			for _, a := range tx.Amounts {
				total = total.Add(a.Abs())
			}
			continue
		}
		total = total.Add(tx.Total.Abs())
	}
	return totalResult(total), nil
}

func average(in Input) (Result, error) {
	t := newTally()
	for _, tx := range simpleTransactions(in.Logs) {
		t.add(tx.Payer, tx.Total, len(tx.Amounts))
	}
	rows := t.rows(nil)
	for i := range rows {
		rows[i].Value = rows[i].Value.Div(decimal.NewFromInt(int64(rows[i].Count)))
	}
	sort.SliceStable(rows, func(i, j int) bool { return byValueDesc(rows[i], rows[j]) })
	return lines{
		rows:   rows,
		empty:  noTransactions,
		format: func(r row) string { return fmt.Sprintf("%s: %s avg", r.Name, r.Value.StringFixed(2)) },
	}, nil
}

type biggestResult struct {
	tx    transaction
	found bool
}

func (r biggestResult) Format() string {
	if !r.found {
		return noTransactions
	}
	return fmt.Sprintf("%s: %s (on %s)", r.tx.Payer, r.tx.Total.StringFixed(2), r.tx.At.Format("2006-01-02 15:04"))
}

func biggest(in Input) (Result, error) {
	var res biggestResult
	for _, tx := range simpleTransactions(in.Logs) {
		if tx.Total.IsPositive() && (!res.found || tx.Total.GreaterThan(res.tx.Total)) {
			res = biggestResult{tx: tx, found: true}
		}
	}
	return res, nil
}

func activityLevel(n int) string {
	switch {
	case n >= 50:
		return "Very Active"
	case n >= 20:
		return "Active"
	case n >= 10:
		return "Moderate"
	case n >= 5:
		return "Low"
	}
	return "Minimal"
}

// activity counts commands by the member named first in their arguments.
func activity(in Input) (Result, error) {
	t := newTally()
	for _, e := range in.Logs {
		_, args := expr.ParseCommand(e.Command)
		if len(args) == 0 || !ledger.IsLetters(args[0]) {
			continue
		}
		t.add(ledger.NormalizeName(args[0]), decimal.Zero, 1)
	}
	return lines{
		rows:  t.rows(byCountDesc),
		empty: "No activity data available",
		format: func(r row) string {
			return fmt.Sprintf("%s: %s (%d commands)", r.Name, activityLevel(r.Count), r.Count)
		},
	}, nil
}

type debtResult struct {
	debtor, creditor row
	totalDebt        decimal.Decimal
	totalCredit      decimal.Decimal
	debtors          int
	creditors        int
}

func (r debtResult) Format() string {
	var out []string
	if r.debtors > 0 {
		out = append(out, fmt.Sprintf("💸 Biggest Debtor: %s (%s)", r.debtor.Name, r.debtor.Value.StringFixed(2)))
	}
	if r.creditors > 0 {
		out = append(out, fmt.Sprintf("💰 Biggest Creditor: %s (%s)", r.creditor.Name, r.creditor.Value.StringFixed(2)))
	}
	out = append(out,
		fmt.Sprintf("📊 Total Debt: %s (%d users)", r.totalDebt.StringFixed(2), r.debtors),
		fmt.Sprintf("📈 Total Credit: %s (%d users)", r.totalCredit.StringFixed(2), r.creditors),
	)
	return strings.Join(out, "\n")
}

func debt(in Input) (Result, error) {
	var res debtResult
	for _, e := range in.State.Entries() {
		switch {
		case e.Balance.IsNegative():
			if res.debtors == 0 || e.Balance.LessThan(res.debtor.Value) {
				res.debtor = row{Name: e.Name, Value: e.Balance}
			}
			res.debtors++
			res.totalDebt = res.totalDebt.Add(e.Balance)
		case e.Balance.IsPositive():
			if res.creditors == 0 || e.Balance.GreaterThan(res.creditor.Value) {
				res.creditor = row{Name: e.Name, Value: e.Balance}
			}
			res.creditors++
			res.totalCredit = res.totalCredit.Add(e.Balance)
		}
	}
	return res, nil
}

type balanceResult struct {
	users   int
	total   decimal.Decimal
	average decimal.Decimal
}

func (r balanceResult) Format() string {
	return fmt.Sprintf("👥 Total Users: %d\n💰 Total Balance: %s\n📊 Average Balance: %s",
		r.users, r.total.StringFixed(2), r.average.StringFixed(2))
}

func balanceSummary(in Input) (Result, error) {
	res := balanceResult{users: in.State.Len(), total: in.State.Sum()}
	if res.users > 0 {
		res.average = res.total.Div(decimal.NewFromInt(int64(res.users)))
	}
	return res, nil
}

type consistencyResult struct {
	accuracy     float64
	active       int
	transacting  int
	withBalances int
}

func (r consistencyResult) Format() string {
	return fmt.Sprintf("✅ Data Accuracy: %.1f%%\n🎯 Active Users: %d\n💸 Users w/ Transactions: %d\n💰 Users w/ Balance: %d",
		r.accuracy, r.active, r.transacting, r.withBalances)
}

// consistency compares who has transacted against who holds a balance.
func consistency(in Input) (Result, error) {
	transacting := make(map[string]bool)
	for _, tx := range transactions(in.Logs) {
		transacting[tx.Payer] = true
	}
	withBalance := make(map[string]bool)
	for _, e := range in.State.Entries() {
		if !e.Balance.IsZero() {
			withBalance[e.Name] = true
		}
	}
	overlap := 0
	union := len(withBalance)
	for name := range transacting {
		if withBalance[name] {
			overlap++
		} else {
			union++
		}
	}
	res := consistencyResult{accuracy: 100, active: union, transacting: len(transacting), withBalances: len(withBalance)}
	if union > 0 {
		res.accuracy = float64(overlap) / float64(union) * 100
	}
	return res, nil
}

func generous(in Input) (Result, error) {
	t := newTally()
	for _, tx := range simpleTransactions(in.Logs) {
		t.add(tx.Payer, tx.Total, len(tx.Amounts))
	}
	rows := t.rows(byValueDesc)
	if len(rows) > 5 {
		rows = rows[:5]
	}
	return lines{
		rows:  rows,
		empty: "No generosity data available",
		format: func(r row) string {
			avg := r.Value.Div(decimal.NewFromInt(int64(r.Count)))
			return fmt.Sprintf("🏆 %s: %d gifts, %s total, %s avg", r.Name, r.Count, r.Value.StringFixed(2), avg.StringFixed(2))
		},
	}, nil
}
