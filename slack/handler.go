// Package pricerslack is a socket-mode Slack front end for the pricer.
package pricerslack

import (
	"context"
	"log/slog"

	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/slack-go/slack"
)

// Poster is the part of the Slack client the command handlers use.
type Poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

type Handler struct {
	helpHandler  *HelpHandler
	priceHandler *PriceHandler
}

func NewHandler(proc *jobs.Processor, defaultRate float64, log *slog.Logger) *Handler {
	return &Handler{
		helpHandler:  NewHelpHandler(),
		priceHandler: NewPriceHandler(proc, defaultRate, log),
	}
}

func (h *Handler) Handle(ctx context.Context, cmd slack.SlashCommand, client Poster) error {
	switch cmd.Command {
	case "/help":
		return h.helpHandler.HandleCommand(cmd, client)
	case "/price":
		return h.priceHandler.HandleCommand(ctx, cmd, client)
	}
	return nil
}
