package commands

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/engine"
	"github.com/susu3304/debitbot/internal/ledger"
)

// MessageSender posts replies to chat messages.
type MessageSender interface {
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// InteractionResponder answers slash commands.
type InteractionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Runner feeds chat commands to the engine and renders the outcome.
type Runner struct {
	engine *engine.Engine
	log    *zap.Logger
	prefix string

	// chat id -> last registered ledger.Chat
	registered sync.Map
}

func NewRunner(e *engine.Engine, log *zap.Logger, prefix string) *Runner {
	return &Runner{engine: e, log: log, prefix: prefix}
}

func (r *Runner) Prefix() string { return r.prefix }

// Run executes one command for chat and returns the reply text.
func (r *Runner) Run(ctx context.Context, chat ledger.Chat, senderID, code string, args []string) string {
	r.register(ctx, chat)

	reply, err := r.engine.Execute(ctx, engine.Request{
		ChatID:   chat.ID,
		SenderID: senderID,
		Code:     code,
		Args:     args,
	})
	if err != nil {
		var le *ledger.Error
		if !errors.As(err, &le) {
			r.log.Error("command failed",
				zap.String("chat_id", chat.ID),
				zap.String("code", code),
				zap.Error(err))
		}
		return RenderError(err)
	}
	return reply
}

// register records the chat once per process, and again if its title or
// guild changes.
func (r *Runner) register(ctx context.Context, chat ledger.Chat) {
	if prev, ok := r.registered.Load(chat.ID); ok && prev.(ledger.Chat) == chat {
		return
	}
	if err := r.engine.RegisterChat(ctx, chat); err != nil {
		r.log.Warn("register chat failed", zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}
	r.registered.Store(chat.ID, chat)
}

// HandleMessage answers a prefixed chat message with a reply to it.
func HandleMessage(s MessageSender, m *discordgo.MessageCreate, chat ledger.Chat, r *Runner) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	code, args, ok := ParseLine(r.prefix, m.Content)
	if !ok {
		return
	}
	ctx := context.Background()
	reply := r.Run(ctx, chat, m.Author.ID, code, args)
	for _, part := range FormatReply(reply) {
		if err := replyWithRetry(ctx, s, m, part); err != nil {
			r.log.Warn("send reply failed", zap.String("chat_id", chat.ID), zap.Error(err))
			return
		}
	}
}

// HandleLedger runs the text given to /ledger.
func HandleLedger(s InteractionResponder, i *discordgo.InteractionCreate, chat ledger.Chat, r *Runner) {
	var text string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "command" {
			text = opt.StringValue()
		}
	}

	var reply string
	code, args, ok := ParseLine("", text)
	if !ok {
		reply = RenderError(ledger.Errorf(ledger.KindInvalidCommandFormat, "Empty command"))
	} else {
		reply = r.Run(context.Background(), chat, interactionUserID(i), code, args)
	}

	parts := FormatReply(reply)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: parts[0],
		},
	})
	if err != nil {
		r.log.Warn("interaction respond failed", zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}
	for _, part := range parts[1:] {
		if _, err := s.ChannelMessageSend(i.ChannelID, part); err != nil {
			r.log.Warn("send reply failed", zap.String("chat_id", chat.ID), zap.Error(err))
			return
		}
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
