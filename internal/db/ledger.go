package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/susu3304/debitbot/internal/ledger"
)

func (db *DB) LoadState(ctx context.Context, chatID string) (*ledger.Ledger, error) {
	rows, err := db.pool.Query(ctx,
		"SELECT name, balance::text FROM ledger_balances WHERE chat_id = $1 ORDER BY position",
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("load state: balance of %s: %w", name, err)
		}
		entries = append(entries, ledger.Entry{Name: name, Balance: balance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return ledger.FromEntries(entries), nil
}

func (db *DB) SaveState(ctx context.Context, chatID string, l *ledger.Ledger) error {
	return db.SaveStates(ctx, map[string]*ledger.Ledger{chatID: l})
}

// SaveStates replaces every given ledger in one transaction.
func (db *DB) SaveStates(ctx context.Context, states map[string]*ledger.Ledger) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, chatID := range ids {
		if err := replaceState(ctx, tx, chatID, states[chatID]); err != nil {
			return fmt.Errorf("save state %s: %w", chatID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func replaceState(ctx context.Context, tx pgx.Tx, chatID string, l *ledger.Ledger) error {
	if _, err := tx.Exec(ctx, "DELETE FROM ledger_balances WHERE chat_id = $1", chatID); err != nil {
		return err
	}
	entries := l.Entries()
	if len(entries) == 0 {
		return nil
	}
	names := make([]string, len(entries))
	balances := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
		balances[i] = e.Balance.StringFixed(2)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_balances (chat_id, position, name, balance)
		SELECT $1, ord::int, name, balance::numeric
		FROM unnest($2::text[], $3::text[]) WITH ORDINALITY AS t(name, balance, ord)`,
		chatID, names, balances,
	)
	return err
}

func (db *DB) LoadGroups(ctx context.Context, chatID string) (*ledger.Groups, error) {
	rows, err := db.pool.Query(ctx,
		"SELECT keyword, members FROM ledger_groups WHERE chat_id = $1 ORDER BY position",
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	defer rows.Close()

	var groups []ledger.Group
	for rows.Next() {
		var g ledger.Group
		if err := rows.Scan(&g.Keyword, &g.Members); err != nil {
			return nil, fmt.Errorf("load groups: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	return ledger.GroupsFrom(groups), nil
}

func (db *DB) SaveGroups(ctx context.Context, chatID string, g *ledger.Groups) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := replaceGroups(ctx, tx, chatID, g); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	return nil
}

// SaveStateAndGroups replaces a ledger and its groups in one transaction.
func (db *DB) SaveStateAndGroups(ctx context.Context, chatID string, l *ledger.Ledger, g *ledger.Groups) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save state and groups: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := replaceState(ctx, tx, chatID, l); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := replaceGroups(ctx, tx, chatID, g); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save state and groups: %w", err)
	}
	return nil
}

func replaceGroups(ctx context.Context, tx pgx.Tx, chatID string, g *ledger.Groups) error {
	if _, err := tx.Exec(ctx, "DELETE FROM ledger_groups WHERE chat_id = $1", chatID); err != nil {
		return err
	}
	for i, group := range g.List() {
		_, err := tx.Exec(ctx,
			"INSERT INTO ledger_groups (chat_id, position, keyword, members) VALUES ($1, $2, $3, $4)",
			chatID, i+1, group.Keyword, group.Members,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
