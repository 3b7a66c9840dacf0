package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/bcdannyboy/cnpricer/tradier"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	history map[string]*tradier.QuoteHistory
	chains  map[string]map[string]*tradier.OptionChain
}

func (f *fakeMarket) GetQuotes(_ context.Context, symbol, _, _, _ string) (*tradier.QuoteHistory, error) {
	q, ok := f.history[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return q, nil
}

func (f *fakeMarket) GetOptionsChain(_ context.Context, symbol string, _, _ int) (map[string]*tradier.OptionChain, error) {
	return f.chains[symbol], nil
}

type staticRegistry []string

func (r staticRegistry) Tickers(context.Context) ([]string, error) { return r, nil }

type memorySink struct {
	mu      sync.Mutex
	results []jobs.JobResult
}

func (s *memorySink) SaveResult(_ context.Context, res jobs.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func history(closes ...float64) *tradier.QuoteHistory {
	q := &tradier.QuoteHistory{}
	for _, c := range closes {
		q.History.Day = append(q.History.Day, tradier.Day{Open: c * 0.99, High: c * 1.02, Low: c * 0.98, Close: c})
	}
	return q
}

func chain(dte int, opts ...tradier.Option) map[string]*tradier.OptionChain {
	c := &tradier.OptionChain{DTE: dte}
	c.Options.Option = opts
	return map[string]*tradier.OptionChain{"exp": c}
}

func newTestPoller(market MarketData, registry Registry, sink Sink, est Estimator) *Poller {
	proc := jobs.NewProcessor(jobs.WithWorkers(2), jobs.WithLogger(logger.Discard()))
	p := New(Config{Interval: 10 * time.Millisecond, MinDTE: 1, MaxDTE: 60, RiskFreeRate: 0.04, Volatility: est},
		market, registry, sink, proc, logger.Discard())
	p.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	return p
}

func Test_Poll_PricesQuotedContracts(t *testing.T) {
	market := &fakeMarket{
		history: map[string]*tradier.QuoteHistory{"ACME": history(10, 10.2, 9.9, 10.1, 10.3, 10)},
		chains: map[string]map[string]*tradier.OptionChain{
			"ACME": chain(10,
				tradier.Option{OptionType: "call", Strike: 10, Bid: 0.3, Ask: 0.4},
				tradier.Option{OptionType: "put", Strike: 10, Bid: 0.25, Ask: 0.35},
				tradier.Option{OptionType: "put", Strike: 9},
			),
		},
	}
	sink := &memorySink{}
	p := newTestPoller(market, staticRegistry{"ACME", "GONE"}, sink, CloseToClose)

	results, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, sink.results, 2)

	for _, r := range results {
		require.NoError(t, r.Err)
		require.Equal(t, "ACME", r.Ticker)
		require.Equal(t, 10.0, r.Spot)
		require.Equal(t, 10, r.Days)
		require.Contains(t, []string{"american_call", "american_put"}, r.OptionType)
		require.Greater(t, r.FairValue, 0.0)
	}
}

func Test_Poll_Estimators(t *testing.T) {
	for _, est := range []Estimator{YangZhang, Parkinson, GarmanKlass, RogersSatchell} {
		require.True(t, est.Valid())
		market := &fakeMarket{
			history: map[string]*tradier.QuoteHistory{"ACME": history(10, 10.2, 9.9, 10.1, 10.3, 10)},
			chains: map[string]map[string]*tradier.OptionChain{
				"ACME": chain(10, tradier.Option{OptionType: "put", Strike: 10, Bid: 0.25, Ask: 0.35}),
			},
		}
		p := newTestPoller(market, staticRegistry{"ACME"}, &memorySink{}, est)

		results, err := p.Poll(context.Background())
		require.NoError(t, err, "estimator=%s", est)
		require.Len(t, results, 1)
		require.NoError(t, results[0].Err, "estimator=%s", est)
	}
	require.False(t, Estimator("garch").Valid())
}

func Test_Poll_NothingToPrice(t *testing.T) {
	p := newTestPoller(&fakeMarket{}, staticRegistry{"GONE"}, &memorySink{}, CloseToClose)
	results, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
}

func Test_Run_StopsOnCancel(t *testing.T) {
	p := newTestPoller(&fakeMarket{}, staticRegistry{}, &memorySink{}, CloseToClose)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

// flakySink fails its first write and stores the rest.
type flakySink struct {
	memorySink
	calls int
}

func (s *flakySink) SaveResult(ctx context.Context, res jobs.JobResult) error {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if first {
		return errors.New("connection reset")
	}
	return s.memorySink.SaveResult(ctx, res)
}

func Test_Poll_SinkFailureDoesNotAbortCycle(t *testing.T) {
	market := &fakeMarket{
		history: map[string]*tradier.QuoteHistory{"ACME": history(10, 10.2, 9.9, 10.1, 10.3, 10)},
		chains: map[string]map[string]*tradier.OptionChain{
			"ACME": chain(10,
				tradier.Option{OptionType: "call", Strike: 10, Bid: 0.3, Ask: 0.4},
				tradier.Option{OptionType: "put", Strike: 10, Bid: 0.25, Ask: 0.35},
				tradier.Option{OptionType: "put", Strike: 11, Bid: 1, Ask: 1.2},
			),
		},
	}
	sink := &flakySink{}
	p := newTestPoller(market, staticRegistry{"ACME"}, sink, CloseToClose)

	results, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, 3, sink.calls)
	require.Len(t, sink.results, 2)
}
