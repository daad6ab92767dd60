package bot

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/commands"
	"github.com/susu3304/debitbot/internal/ledger"
)

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info("connected", zap.String("user", event.User.Username))

	for _, guild := range event.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			b.log.Warn("register commands failed", zap.String("guild_id", guild.ID), zap.Error(err))
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	b.log.Info("guild available", zap.String("guild", event.Name), zap.String("guild_id", event.ID))
	if err := b.registerGuildCommands(event.ID); err != nil {
		b.log.Warn("register commands failed", zap.String("guild_id", event.ID), zap.Error(err))
	}
}

func (b *Bot) registerGuildCommands(guildID string) error {
	cmds := commands.GetCommands()
	// Replaces whatever was registered before.
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, guildID, cmds)
	if err != nil {
		return err
	}
	b.log.Debug("registered application commands", zap.String("guild_id", guildID))
	return nil
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if _, _, ok := commands.ParseLine(b.runner.Prefix(), m.Content); !ok {
		return
	}
	commands.HandleMessage(s, m, chatFor(s, m.ChannelID, m.GuildID), b.runner)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	switch i.ApplicationCommandData().Name {
	case commands.LedgerCommand:
		commands.HandleLedger(s, i, chatFor(s, i.ChannelID, i.GuildID), b.runner)
	case commands.WebCommand:
		if err := commands.HandleWeb(s, i, b.webUIBaseURL); err != nil {
			b.log.Warn("interaction respond failed", zap.Error(err))
		}
	}
}

// chatFor names a chat after its channel. Direct messages and uncached
// channels fall back to the channel id.
func chatFor(s *discordgo.Session, channelID, guildID string) ledger.Chat {
	chat := ledger.Chat{ID: channelID, Title: channelID, GuildID: guildID}
	ch, err := s.State.Channel(channelID)
	if err != nil {
		ch, err = s.Channel(channelID)
	}
	if err == nil && ch.Name != "" {
		chat.Title = ch.Name
	}
	return chat
}
