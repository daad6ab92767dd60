package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/debitbot/internal/ledger"
)

func (db *DB) SaveChat(ctx context.Context, chat ledger.Chat) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO chats (id, title, guild_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, guild_id = EXCLUDED.guild_id, updated_at = now()`,
		chat.ID, chat.Title, chat.GuildID,
	)
	if err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

func (db *DB) GetChat(ctx context.Context, chatID string) (*ledger.Chat, error) {
	var c ledger.Chat
	err := db.pool.QueryRow(ctx,
		"SELECT id, title, guild_id FROM chats WHERE id = $1",
		chatID,
	).Scan(&c.ID, &c.Title, &c.GuildID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &c, nil
}

func (db *DB) FindChatIDByDisplayName(ctx context.Context, name string) (string, error) {
	rows, err := db.pool.Query(ctx, "SELECT id FROM chats WHERE title = $1 LIMIT 2", name)
	if err != nil {
		return "", fmt.Errorf("find chat: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", fmt.Errorf("find chat: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", ledger.ErrChatNotFound
	case 1:
		return ids[0], nil
	}
	return "", ledger.Errorf(ledger.KindDuplicateName, "More chats under the same name: %s", name)
}

func (db *DB) IssueTransferCode(ctx context.Context, code ledger.TransferCode) error {
	_, err := db.pool.Exec(ctx,
		"INSERT INTO transfer_codes (code, chat_id, created_at, used) VALUES ($1, $2, $3, $4)",
		code.Code, code.ChatID, code.CreatedAt, code.Used,
	)
	if err != nil {
		return fmt.Errorf("issue transfer code: %w", err)
	}
	return nil
}

func (db *DB) LookupTransferCode(ctx context.Context, code string) (*ledger.TransferCode, error) {
	var tc ledger.TransferCode
	err := db.pool.QueryRow(ctx,
		"SELECT code, chat_id, created_at, used FROM transfer_codes WHERE code = $1",
		code,
	).Scan(&tc.Code, &tc.ChatID, &tc.CreatedAt, &tc.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrTransferCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup transfer code: %w", err)
	}
	return &tc, nil
}

func (db *DB) MarkTransferCodeUsed(ctx context.Context, code string) error {
	return db.setCodeUsed(ctx, code, true)
}

func (db *DB) ReleaseTransferCode(ctx context.Context, code string) error {
	return db.setCodeUsed(ctx, code, false)
}

func (db *DB) setCodeUsed(ctx context.Context, code string, used bool) error {
	result, err := db.pool.Exec(ctx, "UPDATE transfer_codes SET used = $2 WHERE code = $1", code, used)
	if err != nil {
		return fmt.Errorf("update transfer code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrTransferCodeNotFound
	}
	return nil
}

// PurgeTransferCodes deletes codes created before cutoff.
func (db *DB) PurgeTransferCodes(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := db.pool.Exec(ctx, "DELETE FROM transfer_codes WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge transfer codes: %w", err)
	}
	return int(result.RowsAffected()), nil
}
