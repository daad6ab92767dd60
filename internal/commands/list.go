package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// HandleWeb replies with the web page that shows this channel's ledger.
func HandleWeb(s InteractionResponder, i *discordgo.InteractionCreate, webUIBaseURL string) error {
	content := "This command only works inside a server."
	if i.GuildID != "" {
		content = fmt.Sprintf("Web ledger: %s/chats/%s", webUIBaseURL, i.ChannelID)
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
