package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/susu3304/debitbot/internal/expr"
	"github.com/susu3304/debitbot/internal/ledger"
)

// newName normalizes and validates a name argument.
func (e *Engine) newName(a expr.Arg) (string, error) {
	if a.IsNum {
		return "", ledger.Errorf(ledger.KindInvalidArguments, "Name must contain letters only: %s", a.Raw)
	}
	if err := ledger.ValidateName(a.Name, e.opts.MaxNameLength); err != nil {
		return "", err
	}
	return a.Name, nil
}

func (e *Engine) tooMany() error {
	return ledger.Errorf(ledger.KindForbiddenAction, "Too many members (max %d)", e.opts.MaxMembers)
}

func (e *Engine) addMembers(ctx context.Context, req Request) (result, error) {
	if len(req.Args) == 0 {
		return result{}, e.usage(req.Code)
	}
	args, err := expr.Resolve(req.Args)
	if err != nil {
		return result{}, err
	}
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	for _, a := range args {
		name, err := e.newName(a)
		if err != nil {
			return result{}, err
		}
		if state.Has(name) {
			return result{}, ledger.Errorf(ledger.KindDuplicateName, "Name already taken: %s", name)
		}
		if state.Len() >= e.opts.MaxMembers {
			return result{}, e.tooMany()
		}
		state.Set(name, decimal.Zero)
	}
	if err := e.saveState(ctx, req.ChatID, state); err != nil {
		return result{}, err
	}
	msg := "Name added"
	if len(args) > 1 {
		msg = "Names added"
	}
	return result{msg: msg, state: state}, nil
}

func (e *Engine) removeMember(ctx context.Context, req Request) (result, error) {
	if len(req.Args) != 1 {
		return result{}, e.usage(req.Code)
	}
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	name, err := memberName(expr.Name(req.Args[0]), state)
	if err != nil {
		return result{}, err
	}
	if !state.Balance(name).IsZero() {
		return result{}, ledger.Errorf(ledger.KindForbiddenAction, "Balance not 0: %s", name)
	}
	state.Remove(name)
	if err := e.saveState(ctx, req.ChatID, state); err != nil {
		return result{}, err
	}
	return result{msg: "Name removed", state: state}, nil
}

// renameMember moves a balance to a new name and rewrites the name in every
// group that lists it.
func (e *Engine) renameMember(ctx context.Context, req Request) (result, error) {
	if len(req.Args) != 2 {
		return result{}, e.usage(req.Code)
	}
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	oldName, err := memberName(expr.Name(req.Args[0]), state)
	if err != nil {
		return result{}, err
	}
	newName, err := e.newName(expr.Name(req.Args[1]))
	if err != nil {
		return result{}, err
	}
	if state.Has(newName) {
		return result{}, ledger.Errorf(ledger.KindDuplicateName, "Name already taken: %s", newName)
	}
	groups, err := e.store.LoadGroups(ctx, req.ChatID)
	if err != nil {
		return result{}, fmt.Errorf("load groups: %w", err)
	}

	state.Rename(oldName, newName)
	if groups.RenameMember(oldName, newName) == 0 {
		if err := e.saveState(ctx, req.ChatID, state); err != nil {
			return result{}, err
		}
		return result{msg: "Name changed", state: state}, nil
	}
	if err := e.store.SaveStateAndGroups(ctx, req.ChatID, state, groups); err != nil {
		return result{}, fmt.Errorf("save state and groups: %w", err)
	}
	return result{msg: "Name changed", state: state}, nil
}

func (e *Engine) nonEmptyState(ctx context.Context, chatID string) (*ledger.Ledger, error) {
	state, err := e.loadState(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if state.Len() == 0 {
		return nil, ledger.Errorf(ledger.KindDataMissing, "Empty :(")
	}
	return state, nil
}

func (e *Engine) showState(ctx context.Context, req Request) (result, error) {
	state, err := e.nonEmptyState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	return result{msg: state.Render()}, nil
}

func (e *Engine) sum(ctx context.Context, req Request) (result, error) {
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	return result{msg: state.Sum().StringFixed(2)}, nil
}

func (e *Engine) randomName(ctx context.Context, req Request) (result, error) {
	state, err := e.nonEmptyState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	names := state.Names()
	return result{msg: names[e.opts.Intn(len(names))]}, nil
}
