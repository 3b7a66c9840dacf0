package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/bcdannyboy/cnpricer/api"
	"github.com/bcdannyboy/cnpricer/cache"
	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/bcdannyboy/cnpricer/poller"
	pricerslack "github.com/bcdannyboy/cnpricer/slack"
	"github.com/bcdannyboy/cnpricer/tradier"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP API, the market-data poller and, when tokens are set, the Slack bot",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.Get()

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		store := cache.NewStore(rdb, cfg.Redis.ResultTTL)
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		if err := seedTickers(ctx, store, cfg.Poll.Tickers); err != nil {
			return err
		}

		proc := newProcessor(cfg, 0)
		g, gctx := errgroup.WithContext(ctx)

		server := api.NewServer(cfg.HTTP.Addr, store, proc, log)
		g.Go(func() error { return server.ListenAndServe(gctx) })

		if cfg.Tradier.Token != "" {
			p := poller.New(poller.Config{
				Interval:     cfg.Poll.Interval,
				MinDTE:       cfg.Poll.MinDTE,
				MaxDTE:       cfg.Poll.MaxDTE,
				HistoryDays:  cfg.Poll.HistoryDays,
				RiskFreeRate: cfg.RiskFreeRate,
				Volatility:   poller.Estimator(cfg.Poll.Volatility),
			}, tradier.NewClient(cfg.Tradier.Token, cfg.Tradier.BaseURL), store, store, proc, log)
			g.Go(func() error { return ignoreCanceled(p.Run(gctx)) })
		} else {
			log.Warn("tradier.token not set, poller disabled")
		}

		if cfg.Slack.Enabled() {
			bot := pricerslack.NewSlackBot(cfg.Slack.AppToken, cfg.Slack.BotToken, proc, cfg.RiskFreeRate, log)
			g.Go(func() error { return ignoreCanceled(bot.Start(gctx)) })
		}

		log.Info("pricer started", slog.Int("workers", proc.Workers()), slog.String("lookup", cfg.Lookup))
		return g.Wait()
	},
}

// seedTickers installs the configured tickers when the registry is empty, so
// changes made through the API survive a restart.
func seedTickers(ctx context.Context, store *cache.Store, tickers []string) error {
	current, err := store.Tickers(ctx)
	if err != nil {
		return err
	}
	if len(current) > 0 {
		return nil
	}
	return store.SetTickers(ctx, tickers)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
