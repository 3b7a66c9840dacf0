package pricerslack

import (
	"github.com/slack-go/slack"
)

type HelpHandler struct{}

func NewHelpHandler() *HelpHandler {
	return &HelpHandler{}
}

const helpText = "Available commands:\n" +
	"/help - Show this help message\n" +
	"/price <ticker> <type> <K> <days> <spot> <sigma> [rate] [q] [market] - Price an option on the Crank-Nicolson grid\n" +
	"    type is one of european_call, european_put, american_call, american_put"

func (h *HelpHandler) HandleCommand(cmd slack.SlashCommand, client Poster) error {
	_, _, err := client.PostMessage(cmd.ChannelID,
		slack.MsgOptionText(helpText, false))
	return err
}
