package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/expr"
	"github.com/susu3304/debitbot/internal/ledger"
)

var (
	one      = decimal.NewFromInt(1)
	errUsage = errors.New("engine: malformed arguments")
)

// posting moves Amount into a member's balance. A transaction's postings
// always sum to zero.
type posting struct {
	Name   string
	Amount decimal.Decimal
}

type txInput struct {
	args   []expr.Arg
	state  *ledger.Ledger
	groups func() (*ledger.Groups, error)
}

// builder validates resolved arguments against the current state and
// returns the postings a transaction makes. Undo runs the same builder on
// the logged arguments and negates the result.
type builder func(in txInput) ([]posting, error)

func apply(l *ledger.Ledger, postings []posting, negate bool) {
	for _, p := range postings {
		amount := p.Amount
		if negate {
			amount = amount.Neg()
		}
		l.Add(p.Name, amount)
	}
}

func (e *Engine) txInput(ctx context.Context, chatID string, args []expr.Arg, state *ledger.Ledger) txInput {
	return txInput{
		args:  args,
		state: state,
		groups: func() (*ledger.Groups, error) {
			g, err := e.store.LoadGroups(ctx, chatID)
			if err != nil {
				return nil, fmt.Errorf("load groups: %w", err)
			}
			return g, nil
		},
	}
}

func (e *Engine) loadState(ctx context.Context, chatID string) (*ledger.Ledger, error) {
	l, err := e.store.LoadState(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return l, nil
}

func (e *Engine) saveState(ctx context.Context, chatID string, l *ledger.Ledger) error {
	if err := l.CheckRange(); err != nil {
		return err
	}
	if err := e.store.SaveState(ctx, chatID, l); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (e *Engine) applyTransaction(ctx context.Context, req Request, build builder) (result, error) {
	args, err := expr.Resolve(req.Args)
	if err != nil {
		return result{}, err
	}
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	postings, err := build(e.txInput(ctx, req.ChatID, args, state))
	if errors.Is(err, errUsage) {
		return result{}, e.usage(req.Code)
	}
	if err != nil {
		return result{}, err
	}
	apply(state, postings, false)
	if err := e.saveState(ctx, req.ChatID, state); err != nil {
		return result{}, err
	}
	return result{msg: "Transaction complete", state: state}, nil
}

func (e *Engine) undo(ctx context.Context, req Request) (result, error) {
	if len(req.Args) != 0 {
		return result{}, e.usage(req.Code)
	}
	entry, err := e.store.LoadLog(ctx, req.ChatID, 0)
	if errors.Is(err, ledger.ErrNoLog) {
		return result{}, ledger.Errorf(ledger.KindForbiddenAction, "Only transactions can be undone")
	}
	if err != nil {
		return result{}, fmt.Errorf("load log: %w", err)
	}
	code, raw := expr.ParseCommand(entry.Command)
	cmd, ok := e.commands[code]
	if !ok || cmd.build == nil || entry.Undone {
		return result{}, ledger.Errorf(ledger.KindForbiddenAction, "Only transactions can be undone")
	}

	args, err := expr.Resolve(raw)
	if err != nil {
		return result{}, err
	}
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	postings, err := cmd.build(e.txInput(ctx, req.ChatID, args, state))
	if errors.Is(err, errUsage) {
		return result{}, e.usage(code)
	}
	if err != nil {
		return result{}, err
	}
	apply(state, postings, true)
	if err := e.saveState(ctx, req.ChatID, state); err != nil {
		return result{}, err
	}
	if err := e.store.MarkUndone(ctx, req.ChatID, entry.ID); err != nil {
		e.log.Error("mark undone failed",
			zap.String("chat_id", req.ChatID),
			zap.String("log_id", entry.ID),
			zap.Error(err))
	}
	return result{msg: "Undone", state: state}, nil
}

func memberName(a expr.Arg, state *ledger.Ledger) (string, error) {
	if a.IsNum {
		return "", ledger.Errorf(ledger.KindInvalidArguments, "Expected a name, got %s", a.Raw)
	}
	if !state.Has(a.Name) {
		return "", ledger.Errorf(ledger.KindUnknownMember, "Name not on the list: %s", a.Name)
	}
	return a.Name, nil
}

func amountOf(a expr.Arg) (decimal.Decimal, error) {
	if !a.IsNum {
		return decimal.Zero, ledger.Errorf(ledger.KindInvalidArguments, "Expected an amount, got %s", a.Raw)
	}
	v := a.Value.Round(2)
	if !ledger.InRange(v) {
		return decimal.Zero, ledger.Errorf(ledger.KindInvalidArguments, "Amount out of range: %s", a.Raw)
	}
	return v, nil
}

// buildTransaction: t payer (payee amount)+
func buildTransaction(in txInput) ([]posting, error) {
	args := in.args
	if len(args) < 3 || len(args)%2 == 0 {
		return nil, errUsage
	}
	payer, err := memberName(args[0], in.state)
	if err != nil {
		return nil, err
	}
	postings := make([]posting, 0, len(args)/2+1)
	total := decimal.Zero
	for i := 1; i < len(args); i += 2 {
		payee, err := memberName(args[i], in.state)
		if err != nil {
			return nil, err
		}
		amount, err := amountOf(args[i+1])
		if err != nil {
			return nil, err
		}
		postings = append(postings, posting{Name: payee, Amount: amount.Neg()})
		total = total.Add(amount)
	}
	return append(postings, posting{Name: payer, Amount: total}), nil
}

// split divides total among payees by weight. With includePayer the first
// weight is the payer's own share, which the payer simply keeps.
func split(total decimal.Decimal, payer string, payees []string, weights []decimal.Decimal, includePayer bool) []posting {
	shares := ledger.Allocate(total, weights)
	if includePayer {
		shares = shares[1:]
	}
	postings := make([]posting, 0, len(payees)+1)
	credited := decimal.Zero
	for i, name := range payees {
		postings = append(postings, posting{Name: name, Amount: shares[i].Neg()})
		credited = credited.Add(shares[i])
	}
	return append(postings, posting{Name: payer, Amount: credited})
}

// buildSplit: td payer [weight] (payee [weight])+ total, or the tdex form
// where the payer carries no weight.
func buildSplit(includePayer bool) builder {
	return func(in txInput) ([]posting, error) {
		args := in.args
		if len(args) < 3 {
			return nil, errUsage
		}
		total, err := amountOf(args[len(args)-1])
		if err != nil {
			return nil, err
		}
		payer, err := memberName(args[0], in.state)
		if err != nil {
			return nil, err
		}

		var payees []string
		weights := []decimal.Decimal{one}
		weighted := []bool{false}
		seen := map[string]bool{payer: true}
		for _, a := range args[1 : len(args)-1] {
			if a.IsNum {
				last := len(weights) - 1
				switch {
				case last == 0 && !includePayer:
					return nil, ledger.Errorf(ledger.KindInvalidArguments, "Payer takes no weight when excluded")
				case weighted[last]:
					return nil, ledger.Errorf(ledger.KindInvalidArguments, "Weight given twice: %s", a.Raw)
				case !a.Value.IsPositive():
					return nil, ledger.Errorf(ledger.KindInvalidArguments, "Weights must be positive: %s", a.Raw)
				}
				weights[last] = a.Value
				weighted[last] = true
				continue
			}
			name, err := memberName(a, in.state)
			if err != nil {
				return nil, err
			}
			if seen[name] {
				return nil, ledger.Errorf(ledger.KindInvalidArguments, "Name repeated: %s", name)
			}
			seen[name] = true
			payees = append(payees, name)
			weights = append(weights, one)
			weighted = append(weighted, false)
		}
		if len(payees) == 0 {
			return nil, errUsage
		}
		if !includePayer {
			weights = weights[1:]
		}
		return split(total, payer, payees, weights, includePayer), nil
	}
}

// buildGroupSplit: tg|tgex payer GROUP total. Members removed from the
// ledger since the group was created are skipped.
func buildGroupSplit(includePayer bool) builder {
	return func(in txInput) ([]posting, error) {
		args := in.args
		if len(args) != 3 || args[1].IsNum {
			return nil, errUsage
		}
		payer, err := memberName(args[0], in.state)
		if err != nil {
			return nil, err
		}
		total, err := amountOf(args[2])
		if err != nil {
			return nil, err
		}
		groups, err := in.groups()
		if err != nil {
			return nil, err
		}
		keyword := ledger.NormalizeKeyword(args[1].Raw)
		if !groups.Has(keyword) {
			return nil, ledger.Errorf(ledger.KindUnknownGroup, "Group nonexisting: %s", keyword)
		}

		inGroup := false
		var payees []string
		for _, m := range groups.Members(keyword) {
			if m == payer {
				inGroup = true
				continue
			}
			if in.state.Has(m) {
				payees = append(payees, m)
			}
		}
		if includePayer && !inGroup {
			return nil, ledger.Errorf(ledger.KindUnknownMember, "Name not in group: %s", payer)
		}
		if len(payees) == 0 {
			return nil, ledger.Errorf(ledger.KindInvalidArguments, "Group %s has no one to split with", keyword)
		}

		n := len(payees)
		if includePayer {
			n++
		}
		weights := make([]decimal.Decimal, n)
		for i := range weights {
			weights[i] = one
		}
		return split(total, payer, payees, weights, includePayer), nil
	}
}
