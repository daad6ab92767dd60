package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/commands"
)

type Bot struct {
	session      *discordgo.Session
	runner       *commands.Runner
	webUIBaseURL string
	log          *zap.Logger
}

func New(token string, runner *commands.Runner, webUIBaseURL string, log *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session:      session,
		runner:       runner,
		webUIBaseURL: webUIBaseURL,
		log:          log,
	}

	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.log.Info("discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}
