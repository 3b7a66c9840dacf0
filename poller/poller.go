// Package poller turns market data for the registered tickers into pricing
// batches on a fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/bcdannyboy/cnpricer/models"
	"github.com/bcdannyboy/cnpricer/tradier"
)

var ErrNoQuotes = errors.New("no quotes")

type MarketData interface {
	GetQuotes(ctx context.Context, symbol, start, end, interval string) (*tradier.QuoteHistory, error)
	GetOptionsChain(ctx context.Context, symbol string, minDTE, maxDTE int) (map[string]*tradier.OptionChain, error)
}

type Registry interface {
	Tickers(ctx context.Context) ([]string, error)
}

type Sink interface {
	SaveResult(ctx context.Context, res jobs.JobResult) error
}

type Estimator string

const (
	CloseToClose   Estimator = "close_to_close"
	YangZhang      Estimator = "yang_zhang"
	Parkinson      Estimator = "parkinson"
	GarmanKlass    Estimator = "garman_klass"
	RogersSatchell Estimator = "rogers_satchell"
)

func (e Estimator) Valid() bool {
	switch e {
	case CloseToClose, YangZhang, Parkinson, GarmanKlass, RogersSatchell:
		return true
	}
	return false
}

type Config struct {
	Interval     time.Duration
	MinDTE       int
	MaxDTE       int
	HistoryDays  int
	RiskFreeRate float64
	Volatility   Estimator
}

type Poller struct {
	cfg      Config
	market   MarketData
	registry Registry
	sink     Sink
	pricer   *jobs.Pricer
	log      *slog.Logger
	now      func() time.Time
}

func New(cfg Config, market MarketData, registry Registry, sink Sink, proc *jobs.Processor, log *slog.Logger) *Poller {
	if log == nil {
		log = logger.Get()
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 365
	}
	return &Poller{
		cfg:      cfg,
		market:   market,
		registry: registry,
		sink:     sink,
		pricer:   jobs.NewPricer(proc),
		log:      log.With(slog.String("component", "poller")),
		now:      time.Now,
	}
}

// Run polls once immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.log.Error("poll cycle failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs one cycle: build jobs for every registered ticker, price them as a
// single batch, and store each result. A ticker whose market data cannot be
// fetched is skipped.
func (p *Poller) Poll(ctx context.Context) ([]jobs.JobResult, error) {
	tickers, err := p.registry.Tickers(ctx)
	if err != nil {
		return nil, err
	}

	for _, symbol := range tickers {
		reqs, err := p.jobsForTicker(ctx, symbol)
		if err != nil {
			p.log.Warn("skipping ticker", slog.String("ticker", symbol), slog.Any("error", err))
			continue
		}
		dropped := 0
		for _, req := range reqs {
			if p.pricer.SubmitJob(req) == jobs.DuplicateDropped {
				dropped++
			}
		}
		p.log.Debug("ticker queued", slog.String("ticker", symbol), slog.Int("jobs", len(reqs)), slog.Int("duplicates", dropped))
	}

	if p.pricer.Pending() == 0 {
		return nil, nil
	}
	saveErrors := 0
	results, err := p.pricer.RunBatch(ctx, func(res jobs.JobResult) error {
		if res.Failed() {
			return nil
		}
		// logged and skipped; the next cycle rewrites the entry
		if err := p.sink.SaveResult(ctx, res); err != nil {
			saveErrors++
			key := res.Key()
			p.log.Warn("saving result failed", slog.String("ticker", key.Ticker), slog.String("option_type", key.OptionType),
				slog.Float64("strike", key.Strike), slog.Int("days", key.Days), slog.Any("error", err))
		}
		return nil
	})
	if saveErrors > 0 {
		p.log.Warn("poll cycle finished with unsaved results", slog.Int("unsaved", saveErrors), slog.Int("results", len(results)))
	}
	return results, err
}

func (p *Poller) jobsForTicker(ctx context.Context, symbol string) ([]jobs.JobRequest, error) {
	today := p.now()
	quotes, err := p.market.GetQuotes(ctx, symbol,
		today.AddDate(0, 0, -p.cfg.HistoryDays).Format("2006-01-02"), today.Format("2006-01-02"), "daily")
	if err != nil {
		return nil, fmt.Errorf("quotes: %w", err)
	}
	spot, ok := quotes.LastClose()
	if !ok {
		return nil, ErrNoQuotes
	}
	sigma, err := p.volatility(quotes)
	if err != nil {
		return nil, err
	}

	chains, err := p.market.GetOptionsChain(ctx, symbol, p.cfg.MinDTE, p.cfg.MaxDTE)
	if err != nil {
		return nil, fmt.Errorf("options chain: %w", err)
	}

	var reqs []jobs.JobRequest
	for _, chain := range chains {
		for _, opt := range chain.Options.Option {
			price, ok := opt.MarketPrice()
			if !ok {
				continue
			}
			var typ models.OptionType
			switch opt.OptionType {
			case "call":
				typ = models.AmericanCallType
			case "put":
				typ = models.AmericanPutType
			default:
				continue
			}
			reqs = append(reqs, jobs.JobRequest{
				Ticker:      symbol,
				OptionType:  string(typ),
				Strike:      opt.Strike,
				Days:        chain.DTE,
				Spot:        spot,
				MarketPrice: price,
				Rate:        p.cfg.RiskFreeRate,
				Sigma:       sigma,
			})
		}
	}
	return reqs, nil
}

func (p *Poller) volatility(quotes *tradier.QuoteHistory) (float64, error) {
	switch p.cfg.Volatility {
	case YangZhang:
		return models.YangZhangVolatility(quotes.OHLC())
	case Parkinson:
		_, high, low, _ := quotes.OHLC()
		return models.ParkinsonVolatility(high, low)
	case GarmanKlass:
		return models.GarmanKlassVolatility(quotes.OHLC())
	case RogersSatchell:
		return models.RogersSatchellVolatility(quotes.OHLC())
	}
	return models.CloseToCloseVolatility(quotes.Closes())
}
