package pricerslack

import (
	"context"
	"log/slog"

	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

type SlackBot struct {
	client       *slack.Client
	socketClient *socketmode.Client
	eventHandler *Handler
	log          *slog.Logger
}

func NewSlackBot(appToken, botToken string, proc *jobs.Processor, defaultRate float64, l *slog.Logger) *SlackBot {
	if l == nil {
		l = logger.Get()
	}
	l = l.With(slog.String("component", "slack"))

	client := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionLog(slog.NewLogLogger(l.With(slog.String("source", "socketmode")).Handler(), slog.LevelDebug)),
	)

	return &SlackBot{
		client:       client,
		socketClient: socketClient,
		eventHandler: NewHandler(proc, defaultRate, l),
		log:          l,
	}
}

// Start serves slash commands until ctx is cancelled.
func (sb *SlackBot) Start(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-sb.socketClient.Events:
				if !ok {
					return
				}
				if evt.Type != socketmode.EventTypeSlashCommand {
					continue
				}
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				sb.socketClient.Ack(*evt.Request)
				if err := sb.eventHandler.Handle(ctx, cmd, sb.socketClient); err != nil {
					sb.log.Error("slash command failed", slog.String("command", cmd.Command), slog.Any("error", err))
				}
			}
		}
	}()

	return sb.socketClient.RunContext(ctx)
}
