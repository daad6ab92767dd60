package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/susu3304/debitbot/internal/ledger"
	"github.com/susu3304/debitbot/internal/stats"
)

func (e *Engine) statsSource(ctx context.Context, chatID string) *stats.Source {
	return &stats.Source{
		LoadLogs: func() ([]ledger.LogEntry, error) {
			return e.store.LoadLogs(ctx, chatID, e.opts.StatsLogLimit)
		},
		LoadState: func() (*ledger.Ledger, error) {
			return e.store.LoadState(ctx, chatID)
		},
	}
}

// stat: no argument lists the statistics; "all", "summary" or a name
// computes them.
func (e *Engine) stat(ctx context.Context, req Request) (result, error) {
	if len(req.Args) == 0 {
		return result{msg: fmt.Sprintf("Available statistics: %s\nUse stat all, stat summary or stat <name>",
			strings.Join(e.stats.Names(), ", "))}, nil
	}
	if len(req.Args) != 1 {
		return result{}, e.usage(req.Code)
	}
	name := strings.ToLower(req.Args[0])
	src := e.statsSource(ctx, req.ChatID)

	var (
		text string
		err  error
	)
	switch name {
	case "all":
		text, err = e.stats.RunAll(src)
	case "summary":
		text, err = e.stats.Summary(src)
	default:
		text, err = e.stats.Run(name, src)
	}
	if errors.Is(err, stats.ErrUnknownStat) {
		return result{}, ledger.Errorf(ledger.KindInvalidArguments, "Unknown statistic: %s", name)
	}
	if err != nil {
		return result{}, err
	}
	return result{msg: text}, nil
}

// StatNames lists the registered statistics.
func (e *Engine) StatNames() []string {
	return e.stats.Names()
}

// Stat computes one statistic the way "stat <name>" does.
func (e *Engine) Stat(ctx context.Context, chatID, name string) (string, error) {
	return e.Execute(ctx, Request{ChatID: chatID, Code: "stat", Args: []string{name}})
}

// State returns a chat's ledger under the chat's read lock.
func (e *Engine) State(ctx context.Context, chatID string) (*ledger.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StorageTimeout)
	defer cancel()
	defer e.locks.rlock(chatID)()
	return e.loadState(ctx, chatID)
}

func (e *Engine) Groups(ctx context.Context, chatID string) (*ledger.Groups, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StorageTimeout)
	defer cancel()
	defer e.locks.rlock(chatID)()
	return e.loadGroups(ctx, chatID)
}

// Logs returns the newest limit log entries, oldest first.
func (e *Engine) Logs(ctx context.Context, chatID string, limit int) ([]ledger.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StorageTimeout)
	defer cancel()
	defer e.locks.rlock(chatID)()
	logs, err := e.store.LoadLogs(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	return logs, nil
}

// RegisterChat records or refreshes a chat's display name and guild.
func (e *Engine) RegisterChat(ctx context.Context, chat ledger.Chat) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StorageTimeout)
	defer cancel()
	if err := e.store.SaveChat(ctx, chat); err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// Chat returns a registered chat or ledger.ErrChatNotFound.
func (e *Engine) Chat(ctx context.Context, chatID string) (*ledger.Chat, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StorageTimeout)
	defer cancel()
	return e.store.GetChat(ctx, chatID)
}
