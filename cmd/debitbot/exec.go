package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/susu3304/debitbot/internal/config"
	"github.com/susu3304/debitbot/internal/engine"
	"github.com/susu3304/debitbot/internal/expr"
	"github.com/susu3304/debitbot/internal/ledger"
)

type execCmd struct {
	chatID string
	sender string
}

func (*execCmd) Name() string     { return "exec" }
func (*execCmd) Synopsis() string { return "run one ledger command against storage" }
func (*execCmd) Usage() string {
	return `debitbot exec -chat <chat-id> [-sender <id>] <command> [args...]

  Runs a ledger command as if it were sent in the chat, e.g.
  debitbot exec -chat 1234 t ana ivo 12.50
`
}

func (c *execCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.chatID, "chat", "", "Chat (channel) id the command runs in")
	f.StringVar(&c.sender, "sender", "cli", "Sender recorded in the command log")
}

func (c *execCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.chatID == "" || f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer log.Sync()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer b.close()

	eng := engine.New(b.store, b.codes,
		engine.WithLogger(log),
		engine.WithOptions(engineOptions(cfg)),
	)
	code, args := expr.ParseCommand(strings.Join(f.Args(), " "))
	reply, err := eng.Execute(ctx, engine.Request{
		ChatID:   c.chatID,
		SenderID: c.sender,
		Code:     code,
		Args:     args,
	})
	var le *ledger.Error
	if errors.As(err, &le) {
		fmt.Fprintln(os.Stderr, le.Error())
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(reply)
	return subcommands.ExitSuccess
}
