package engine

import (
	"context"

	"github.com/susu3304/debitbot/internal/expr"
	"github.com/susu3304/debitbot/internal/ledger"
)

// forceState: sf (name value)+ replaces the whole ledger, then restores a
// zero sum with the imbalance fix.
func (e *Engine) forceState(ctx context.Context, req Request) (result, error) {
	args, err := expr.Resolve(req.Args)
	if err != nil {
		return result{}, err
	}
	if len(args) == 0 || len(args)%2 != 0 {
		return result{}, e.usage(req.Code)
	}
	if len(args)/2 > e.opts.MaxMembers {
		return result{}, e.tooMany()
	}
	state := ledger.New()
	for i := 0; i < len(args); i += 2 {
		name, err := e.newName(args[i])
		if err != nil {
			return result{}, err
		}
		if state.Has(name) {
			return result{}, ledger.Errorf(ledger.KindDuplicateName, "Name repeated: %s", name)
		}
		value, err := amountOf(args[i+1])
		if err != nil {
			return result{}, err
		}
		state.Set(name, value)
	}
	fixed := state.FixImbalance()
	if err := e.saveState(ctx, req.ChatID, state); err != nil {
		return result{}, err
	}
	msg := "Force state complete"
	if fixed {
		msg = "State forced, imbalance fixed"
	}
	return result{msg: msg, state: state}, nil
}

// multiply: sm multiplier scales every balance, e.g. for a currency change.
func (e *Engine) multiply(ctx context.Context, req Request) (result, error) {
	args, err := expr.Resolve(req.Args)
	if err != nil {
		return result{}, err
	}
	if len(args) != 1 {
		return result{}, e.usage(req.Code)
	}
	if !args[0].IsNum {
		return result{}, ledger.Errorf(ledger.KindInvalidArguments, "Expected a multiplier, got %s", args[0].Raw)
	}
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	state.Scale(args[0].Value)
	state.FixImbalance()
	if err := e.saveState(ctx, req.ChatID, state); err != nil {
		return result{}, err
	}
	return result{msg: "State multiplied", state: state}, nil
}

func (e *Engine) resetState(ctx context.Context, req Request) (result, error) {
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	state.Reset()
	if err := e.saveState(ctx, req.ChatID, state); err != nil {
		return result{}, err
	}
	return result{msg: "State reset", state: state}, nil
}
