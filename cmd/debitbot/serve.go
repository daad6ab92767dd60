package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/api"
	"github.com/susu3304/debitbot/internal/bot"
	"github.com/susu3304/debitbot/internal/commands"
	"github.com/susu3304/debitbot/internal/config"
	"github.com/susu3304/debitbot/internal/engine"
	"github.com/susu3304/debitbot/internal/metrics"
	"github.com/susu3304/debitbot/internal/transfer"
)

type serveCmd struct {
	noBot bool
	noWeb bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the Discord bot and the web API" }
func (*serveCmd) Usage() string {
	return `debitbot serve [-no-bot] [-no-web]

  Connects to Discord and serves the HTTP API until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noBot, "no-bot", false, "Do not connect to Discord")
	f.BoolVar(&c.noWeb, "no-web", false, "Do not serve the HTTP API")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if !c.noBot {
		if err := cfg.RequireDiscord(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer log.Sync()

	if err := c.run(ctx, cfg, log); err != nil {
		log.Error("serve failed", zap.Error(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *serveCmd) run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	recorder := metrics.New()
	eng := engine.New(b.store, b.codes,
		engine.WithLogger(log.Named("engine")),
		engine.WithRecorder(recorder),
		engine.WithOptions(engineOptions(cfg)),
	)

	if b.purger != nil {
		sweeper := transfer.NewSweeper(b.purger, cfg.TransferCodeTTL, time.Minute, log.Named("sweeper"))
		sweeper.Start()
		defer sweeper.Stop()
	}

	if !c.noBot {
		runner := commands.NewRunner(eng, log.Named("commands"), cfg.CommandPrefix)
		discordBot, err := bot.New(cfg.DiscordToken, runner, cfg.WebUIBaseURL, log.Named("bot"))
		if err != nil {
			return err
		}
		if err := discordBot.Start(); err != nil {
			return err
		}
		defer discordBot.Stop()
	}

	var apiServer *api.API
	if !c.noWeb {
		apiServer = api.New(cfg, eng, log.Named("api"),
			api.WithMetrics(recorder.Handler()),
			api.WithHealthCheck(b.ping),
		)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error("API server error", zap.Error(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("API shutdown failed", zap.Error(err))
		}
	}
	return nil
}
