package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/config"
	"github.com/susu3304/debitbot/internal/db"
	"github.com/susu3304/debitbot/internal/engine"
	"github.com/susu3304/debitbot/internal/ledger"
	"github.com/susu3304/debitbot/internal/memstore"
	"github.com/susu3304/debitbot/internal/transfer"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}

func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		MaxMembers:      cfg.MaxMembers,
		MaxGroups:       cfg.MaxGroups,
		MaxNameLength:   cfg.MaxNameLength,
		TransferCodeTTL: cfg.TransferCodeTTL,
		StorageTimeout:  cfg.StorageTimeout,
		StatsLogLimit:   cfg.StatsLogLimit,
	}
}

// backend is the storage a process runs on.
type backend struct {
	store ledger.Store
	codes ledger.TransferCodes
	// purger is set when codes do not expire on their own.
	purger transfer.Purger
	ping   func(ctx context.Context) error
	close  func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{close: func() {}, ping: func(context.Context) error { return nil }}

	switch cfg.StorageBackend {
	case config.BackendMemory:
		mem := memstore.New()
		b.store, b.codes, b.purger = mem, mem, mem
		log.Warn("using in-memory storage; ledgers are lost on exit")
	default:
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx); err != nil {
			database.Close()
			return nil, err
		}
		b.store, b.codes, b.purger = database, database, database
		b.ping = database.Ping
		b.close = database.Close
	}

	if cfg.RedisURL != "" {
		client, err := transfer.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.codes = transfer.NewRedisStore(client, cfg.TransferCodeTTL)
		b.purger = nil
		closeStore, ping := b.close, b.ping
		b.close = func() {
			client.Close()
			closeStore()
		}
		b.ping = func(ctx context.Context) error {
			if err := ping(ctx); err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		}
	}
	return b, nil
}
