package ledger

import (
	"context"
	"time"
)

// LogEntry is one successfully executed command.
type LogEntry struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Command   string    `json:"command"`
	CreatedAt time.Time `json:"created_at"`
	Undone    bool      `json:"undone"`
}

// Chat identifies a ledger. Title is the display name used by name-based
// transfers; GuildID scopes web access.
type Chat struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	GuildID string `json:"guild_id,omitempty"`
}

// TransferCode authorises one transfer into ChatID.
type TransferCode struct {
	Code      string    `json:"code"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
	Used      bool      `json:"used"`
}

func (c TransferCode) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(c.CreatedAt.Add(ttl))
}

// Store is the persistence the command engine needs. Missing ledgers and
// group sets load as empty values. Saves overwrite the whole image.
type Store interface {
	LoadState(ctx context.Context, chatID string) (*Ledger, error)
	SaveState(ctx context.Context, chatID string, l *Ledger) error
	// SaveStates overwrites several ledgers atomically.
	SaveStates(ctx context.Context, states map[string]*Ledger) error

	LoadGroups(ctx context.Context, chatID string) (*Groups, error)
	SaveGroups(ctx context.Context, chatID string, g *Groups) error
	// SaveStateAndGroups overwrites a ledger and its groups atomically.
	SaveStateAndGroups(ctx context.Context, chatID string, l *Ledger, g *Groups) error

	// LoadLog returns the entry reverseIndex steps back from the newest
	// (0 = newest), or ErrNoLog.
	LoadLog(ctx context.Context, chatID string, reverseIndex int) (*LogEntry, error)
	// LoadLogs returns the newest limit entries oldest first; limit <= 0
	// returns everything.
	LoadLogs(ctx context.Context, chatID string, limit int) ([]LogEntry, error)
	SaveLog(ctx context.Context, chatID, senderID, command string) error
	MarkUndone(ctx context.Context, chatID, logID string) error

	SaveChat(ctx context.Context, chat Chat) error
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	// FindChatIDByDisplayName returns ErrChatNotFound when no chat has that
	// title and a DuplicateName error when several do.
	FindChatIDByDisplayName(ctx context.Context, name string) (string, error)
}

// TransferCodes keeps one-time transfer codes.
type TransferCodes interface {
	IssueTransferCode(ctx context.Context, code TransferCode) error
	// LookupTransferCode returns ErrTransferCodeNotFound for unknown codes.
	LookupTransferCode(ctx context.Context, code string) (*TransferCode, error)
	MarkTransferCodeUsed(ctx context.Context, code string) error
	// ReleaseTransferCode clears the used flag after a transfer that could
	// not be saved.
	ReleaseTransferCode(ctx context.Context, code string) error
}
