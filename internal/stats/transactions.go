package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/susu3304/debitbot/internal/expr"
	"github.com/susu3304/debitbot/internal/ledger"
)

var splitCodes = map[string]bool{"td": true, "tdex": true, "tg": true, "tgex": true}

// transaction is a money-moving log entry reduced to what calculators use.
type transaction struct {
	Code    string
	Payer   string
	Payees  []string
	Amounts []decimal.Decimal
	Total   decimal.Decimal
	At      time.Time
}

// transactions extracts live (not undone) transactions from logs. Entries
// that no longer parse are skipped.
func transactions(logs []ledger.LogEntry) []transaction {
	var out []transaction
	for _, e := range logs {
		if e.Undone {
			continue
		}
		if tx, ok := parseTransaction(e); ok {
			out = append(out, tx)
		}
	}
	return out
}

func parseTransaction(e ledger.LogEntry) (transaction, bool) {
	code, raw := expr.ParseCommand(e.Command)
	if code != "t" && !splitCodes[code] {
		return transaction{}, false
	}
	args, err := expr.Resolve(raw)
	if err != nil || len(args) < 2 || args[0].IsNum {
		return transaction{}, false
	}
	tx := transaction{Code: code, Payer: args[0].Name, At: e.CreatedAt}
	if code == "t" {
		rest := args[1:]
		if len(rest) == 0 || len(rest)%2 != 0 {
			return transaction{}, false
		}
		for i := 0; i < len(rest); i += 2 {
			if rest[i].IsNum || !rest[i+1].IsNum {
				return transaction{}, false
			}
			tx.Payees = append(tx.Payees, rest[i].Name)
			tx.Amounts = append(tx.Amounts, rest[i+1].Value)
			tx.Total = tx.Total.Add(rest[i+1].Value)
		}
		return tx, true
	}
	last := args[len(args)-1]
	if !last.IsNum {
		return transaction{}, false
	}
	tx.Total = last.Value
	for _, a := range args[1 : len(args)-1] {
		if !a.IsNum {
			tx.Payees = append(tx.Payees, a.Name)
		}
	}
	return tx, true
}
