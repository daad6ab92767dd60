// Package db stores ledgers, groups, command logs, chats and transfer codes
// in PostgreSQL.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/susu3304/debitbot/internal/ledger"
)

type DB struct {
	pool *pgxpool.Pool
}

var (
	_ ledger.Store         = (*DB)(nil)
	_ ledger.TransferCodes = (*DB)(nil)
)

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// RunMigrations creates the schema. Every statement is idempotent.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			guild_id TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_chats_title ON chats(title);

		CREATE TABLE IF NOT EXISTS ledger_balances (
			chat_id TEXT NOT NULL,
			position INT NOT NULL,
			name TEXT NOT NULL,
			balance NUMERIC(14,2) NOT NULL,
			PRIMARY KEY (chat_id, position),
			UNIQUE (chat_id, name)
		);

		CREATE TABLE IF NOT EXISTS ledger_groups (
			chat_id TEXT NOT NULL,
			position INT NOT NULL,
			keyword TEXT NOT NULL,
			members TEXT[] NOT NULL,
			PRIMARY KEY (chat_id, position),
			UNIQUE (chat_id, keyword)
		);

		CREATE TABLE IF NOT EXISTS ledger_logs (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			chat_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			command TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			undone BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_logs_chat_seq ON ledger_logs(chat_id, seq DESC);

		CREATE TABLE IF NOT EXISTS transfer_codes (
			code TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_transfer_codes_created_at ON transfer_codes(created_at);
	`)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
