package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/susu3304/debitbot/internal/ledger"
)

const logColumns = "id, chat_id, sender_id, command, created_at, undone"

func scanLog(row pgx.Row) (ledger.LogEntry, error) {
	var e ledger.LogEntry
	err := row.Scan(&e.ID, &e.ChatID, &e.SenderID, &e.Command, &e.CreatedAt, &e.Undone)
	return e, err
}

func (db *DB) LoadLog(ctx context.Context, chatID string, reverseIndex int) (*ledger.LogEntry, error) {
	if reverseIndex < 0 {
		return nil, ledger.ErrNoLog
	}
	e, err := scanLog(db.pool.QueryRow(ctx,
		"SELECT "+logColumns+" FROM ledger_logs WHERE chat_id = $1 ORDER BY seq DESC OFFSET $2 LIMIT 1",
		chatID, reverseIndex,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNoLog
	}
	if err != nil {
		return nil, fmt.Errorf("load log: %w", err)
	}
	return &e, nil
}

func (db *DB) LoadLogs(ctx context.Context, chatID string, limit int) ([]ledger.LogEntry, error) {
	// NULL means no limit.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := db.pool.Query(ctx, `
		SELECT `+logColumns+` FROM (
			SELECT seq, `+logColumns+` FROM ledger_logs
			WHERE chat_id = $1 ORDER BY seq DESC LIMIT $2
		) recent ORDER BY seq`,
		chatID, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	defer rows.Close()

	var logs []ledger.LogEntry
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("load logs: %w", err)
		}
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	return logs, nil
}

func (db *DB) SaveLog(ctx context.Context, chatID, senderID, command string) error {
	_, err := db.pool.Exec(ctx,
		"INSERT INTO ledger_logs (id, chat_id, sender_id, command) VALUES ($1, $2, $3, $4)",
		ulid.Make().String(), chatID, senderID, command,
	)
	if err != nil {
		return fmt.Errorf("save log: %w", err)
	}
	return nil
}

func (db *DB) MarkUndone(ctx context.Context, chatID, logID string) error {
	result, err := db.pool.Exec(ctx,
		"UPDATE ledger_logs SET undone = TRUE WHERE chat_id = $1 AND id = $2",
		chatID, logID,
	)
	if err != nil {
		return fmt.Errorf("mark undone: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrNoLog
	}
	return nil
}
