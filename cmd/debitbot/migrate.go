package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/susu3304/debitbot/internal/config"
	"github.com/susu3304/debitbot/internal/db"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or update the PostgreSQL schema" }
func (*migrateCmd) Usage() string {
	return `debitbot migrate

  Applies the schema to DATABASE_URL. Safe to run repeatedly.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if cfg.StorageBackend != config.BackendPostgres {
		fmt.Fprintf(os.Stderr, "Error: migrate needs STORAGE_BACKEND=%s\n", config.BackendPostgres)
		return subcommands.ExitUsageError
	}

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer database.Close()

	if err := database.RunMigrations(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("schema up to date")
	return subcommands.ExitSuccess
}
