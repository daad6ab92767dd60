package engine

import (
	"context"
	"fmt"

	"github.com/susu3304/debitbot/internal/expr"
	"github.com/susu3304/debitbot/internal/ledger"
)

func (e *Engine) loadGroups(ctx context.Context, chatID string) (*ledger.Groups, error) {
	g, err := e.store.LoadGroups(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	return g, nil
}

func (e *Engine) saveGroups(ctx context.Context, chatID string, g *ledger.Groups) error {
	if err := e.store.SaveGroups(ctx, chatID, g); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	return nil
}

func groupKeyword(raw string) (string, error) {
	if !ledger.IsLetters(raw) {
		return "", ledger.Errorf(ledger.KindInvalidArguments, "Group keyword must contain letters only: %s", raw)
	}
	return ledger.NormalizeKeyword(raw), nil
}

// addGroup: ga KEYWORD name+. Members must exist now; repeats are dropped.
func (e *Engine) addGroup(ctx context.Context, req Request) (result, error) {
	if len(req.Args) < 2 {
		return result{}, e.usage(req.Code)
	}
	keyword, err := groupKeyword(req.Args[0])
	if err != nil {
		return result{}, err
	}
	state, err := e.loadState(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	groups, err := e.loadGroups(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	if groups.Has(keyword) {
		return result{}, ledger.Errorf(ledger.KindDuplicateName, "Group already exists: %s", keyword)
	}
	if groups.Len() >= e.opts.MaxGroups {
		return result{}, ledger.Errorf(ledger.KindForbiddenAction, "Too many groups (max %d)", e.opts.MaxGroups)
	}

	var members []string
	seen := make(map[string]bool)
	for _, raw := range req.Args[1:] {
		name, err := memberName(expr.Name(raw), state)
		if err != nil {
			return result{}, err
		}
		if !seen[name] {
			seen[name] = true
			members = append(members, name)
		}
	}
	groups.Set(keyword, members)
	if err := e.saveGroups(ctx, req.ChatID, groups); err != nil {
		return result{}, err
	}
	return result{msg: "Group created"}, nil
}

func (e *Engine) removeGroup(ctx context.Context, req Request) (result, error) {
	if len(req.Args) != 1 {
		return result{}, e.usage(req.Code)
	}
	keyword := ledger.NormalizeKeyword(req.Args[0])
	groups, err := e.loadGroups(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	if !groups.Remove(keyword) {
		return result{}, ledger.Errorf(ledger.KindUnknownGroup, "Group nonexisting: %s", keyword)
	}
	if err := e.saveGroups(ctx, req.ChatID, groups); err != nil {
		return result{}, err
	}
	return result{msg: "Group deleted"}, nil
}

func (e *Engine) listGroups(ctx context.Context, req Request) (result, error) {
	groups, err := e.loadGroups(ctx, req.ChatID)
	if err != nil {
		return result{}, err
	}
	if groups.Len() == 0 {
		return result{}, ledger.Errorf(ledger.KindDataMissing, "No groups")
	}
	return result{msg: groups.Render()}, nil
}
