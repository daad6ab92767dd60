package commands

import "github.com/bwmarrin/discordgo"

const (
	LedgerCommand = "ledger"
	WebCommand    = "ledger-web"
)

func GetCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        LedgerCommand,
			Description: "Runs a ledger command, e.g. t ana ivo 12.50",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "command",
					Description: "Command and arguments; h lists every command",
					Required:    true,
				},
			},
		},
		{
			Name:         WebCommand,
			Description:  "Shows the web page for this channel's ledger",
			DMPermission: boolPtr(false),
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
