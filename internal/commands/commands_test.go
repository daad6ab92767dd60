package commands

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/engine"
	"github.com/susu3304/debitbot/internal/ledger"
	"github.com/susu3304/debitbot/internal/memstore"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		prefix, content string
		code            string
		args            []string
		ok              bool
	}{
		{"!", "!t ana ivo 5", "t", []string{"ana", "ivo", "5"}, true},
		{"!", "  !TD ana ivo 12 # dinner", "td", []string{"ana", "ivo", "12"}, true},
		{"!", "!s", "s", []string{}, true},
		{"!", "t ana ivo 5", "", nil, false},
		{"!", "!", "", nil, false},
		{"!", "! # only a comment", "", nil, false},
		{"$", "$na\nana\nivo", "na", []string{"ana", "ivo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			code, args, ok := ParseLine(tt.prefix, tt.content)
			if ok != tt.ok || code != tt.code {
				t.Fatalf("ParseLine() = %q, %v, %v; want %q, %v", code, args, ok, tt.code, tt.ok)
			}
			if ok && len(args)+len(tt.args) > 0 && !reflect.DeepEqual(args, tt.args) {
				t.Errorf("args = %q, want %q", args, tt.args)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"fits", "a\nb", 10, []string{"a\nb"}},
		{"split on lines", "aaaa\nbbbb\ncc", 9, []string{"aaaa\nbbbb", "cc"}},
		{"long line", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"rune boundary", "ééé", 3, []string{"é", "é", "é"}},
		{"empty", "", 5, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Chunk(tt.text, tt.limit); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Chunk() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatReplyRespectsLimit(t *testing.T) {
	line := strings.Repeat("x", 60)
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = line
	}
	parts := FormatReply(strings.Join(lines, "\n"))
	if len(parts) < 2 {
		t.Fatalf("got %d parts, want several", len(parts))
	}
	for i, p := range parts {
		if len(p) > MessageLimit {
			t.Errorf("part %d has %d bytes", i, len(p))
		}
		if !strings.HasPrefix(p, "```\n") || !strings.HasSuffix(p, "\n```") {
			t.Errorf("part %d is not a code block", i)
		}
	}
}

func TestRenderError(t *testing.T) {
	if got := RenderError(ledger.Errorf(ledger.KindUnknownMember, "Name not on the list: Bob")); got != "Name not on the list: Bob" {
		t.Errorf("RenderError(ledger error) = %q", got)
	}
	if got := RenderError(errors.New("connection reset")); got != genericFailure {
		t.Errorf("RenderError(storage error) = %q", got)
	}
}

type fakeSession struct {
	replies      []string
	sent         []string
	interactions []*discordgo.InteractionResponse
}

func (f *fakeSession) ChannelMessageSendReply(_ string, content string, _ *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.replies = append(f.replies, content)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.interactions = append(f.interactions, resp)
	return nil
}

func (f *fakeSession) ChannelMessageSend(_ string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{}, nil
}

func newRunner() (*Runner, *memstore.Store) {
	store := memstore.New()
	return NewRunner(engine.New(store, store), zap.NewNop(), "!"), store
}

func message(content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		Content:   content,
		Author:    &discordgo.User{ID: "u1"},
	}}
}

func TestHandleMessage(t *testing.T) {
	r, store := newRunner()
	s := &fakeSession{}
	chat := ledger.Chat{ID: "c1", Title: "flat", GuildID: "g1"}

	HandleMessage(s, message("!na ana ivo"), chat, r)
	HandleMessage(s, message("!t ana ivo 5"), chat, r)
	HandleMessage(s, message("!t ana bob 5"), chat, r)
	HandleMessage(s, message("!nope"), chat, r)
	HandleMessage(s, message("just chatting"), chat, r)

	bot := message("!s")
	bot.Author.Bot = true
	HandleMessage(s, bot, chat, r)

	if len(s.replies) != 4 {
		t.Fatalf("got %d replies, want 4: %q", len(s.replies), s.replies)
	}
	if !strings.Contains(s.replies[1], "Transaction complete") {
		t.Errorf("reply = %q", s.replies[1])
	}
	if !strings.Contains(s.replies[2], "Name not on the list: Bob") {
		t.Errorf("reply = %q", s.replies[2])
	}
	if !strings.Contains(s.replies[3], "Unknown command: nope") {
		t.Errorf("reply = %q", s.replies[3])
	}

	got, err := store.GetChat(context.Background(), "c1")
	if err != nil || *got != chat {
		t.Errorf("chat not registered: %+v, %v", got, err)
	}
}

func slash(text string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c1",
		GuildID:   "g1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: LedgerCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "command", Type: discordgo.ApplicationCommandOptionString, Value: text},
			},
		},
	}}
}

func TestHandleLedger(t *testing.T) {
	r, store := newRunner()
	s := &fakeSession{}
	chat := ledger.Chat{ID: "c1", Title: "flat"}

	HandleLedger(s, slash("na ana ivo"), chat, r)
	HandleLedger(s, slash("   "), chat, r)

	if len(s.interactions) != 2 {
		t.Fatalf("got %d responses", len(s.interactions))
	}
	if c := s.interactions[0].Data.Content; !strings.Contains(c, "Names added") {
		t.Errorf("response = %q", c)
	}
	if c := s.interactions[1].Data.Content; !strings.Contains(c, "Empty command") {
		t.Errorf("response = %q", c)
	}

	logs, _ := store.LoadLogs(context.Background(), "c1", 0)
	if len(logs) != 1 || logs[0].SenderID != "u1" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestHandleWeb(t *testing.T) {
	s := &fakeSession{}
	if err := HandleWeb(s, slash(""), "https://debit.example.com"); err != nil {
		t.Fatal(err)
	}
	if c := s.interactions[0].Data.Content; c != "Web ledger: https://debit.example.com/chats/c1" {
		t.Errorf("content = %q", c)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type flakySender struct {
	fails int
	calls int
}

func (f *flakySender) ChannelMessageSendReply(string, string, *discordgo.MessageReference, ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, timeoutErr{}
	}
	return &discordgo.Message{}, nil
}

func TestReplyWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		fails     int
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, 1, false},
		{"retried timeout", 1, 2, false},
		{"gives up", 5, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &flakySender{fails: tt.fails}
			err := replyWithRetry(context.Background(), s, message("!s"), "hi")
			if (err != nil) != tt.wantErr || s.calls != tt.wantCalls {
				t.Errorf("err = %v, calls = %d; want err %v, calls %d", err, s.calls, tt.wantErr, tt.wantCalls)
			}
		})
	}
}
