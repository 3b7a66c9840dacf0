package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewStore(client, ttl)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s, mr
}

func Test_Tickers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 0)

	require.NoError(t, s.SetTickers(ctx, []string{"aapl", "GOOG", " AAPL ", "msft"}))
	tickers, err := s.Tickers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, tickers)

	require.NoError(t, s.AddTicker(ctx, "goog"))
	require.NoError(t, s.AddTicker(ctx, "celh"))
	tickers, err = s.Tickers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "MSFT", "GOOG", "CELH"}, tickers)

	require.NoError(t, s.SetTickers(ctx, nil))
	tickers, err = s.Tickers(ctx)
	require.NoError(t, err)
	require.Empty(t, tickers)
}

func Test_SaveResultAndOptionsForTicker(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, 0)

	results := []jobs.JobResult{
		{Ticker: "AAPL", OptionType: "american_put", Strike: 150, Days: 30, Spot: 148, MarketPrice: 4.1, FairValue: 4.25},
		{Ticker: "AAPL", OptionType: "american_call", Strike: 152.5, Days: 30, Spot: 148, MarketPrice: 2, FairValue: 1.9},
		{Ticker: "AAPL", OptionType: "american_call", Strike: 150, Days: 30, Spot: 148, MarketPrice: 3, FairValue: 2.8},
		{Ticker: "AAPL", OptionType: "american_call", Strike: 160, Days: 30, Err: errors.New("failed")},
	}
	for _, r := range results {
		require.NoError(t, s.SaveResult(ctx, r))
	}
	require.True(t, mr.Exists("option:AAPL:american_call:152.5:30"))

	// overwrite keeps one entry per contract
	results[0].FairValue = 4.5
	require.NoError(t, s.SaveResult(ctx, results[0]))

	opts, err := s.OptionsForTicker(ctx, "aapl")
	require.NoError(t, err)
	require.Len(t, opts, 3)

	require.Equal(t, "american_call", opts[0].OptionType)
	require.Equal(t, 150.0, opts[0].Strike)
	require.Equal(t, 152.5, opts[1].Strike)
	require.Equal(t, "american_put", opts[2].OptionType)
	require.Equal(t, 4.5, opts[2].FairValue)
	require.Equal(t, "0.4", opts[2].Edge)
	require.Equal(t, int64(1700000000), opts[2].UpdatedAt)
	require.Equal(t, 30, opts[2].Days)

	empty, err := s.OptionsForTicker(ctx, "NONE")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func Test_DeleteTickerDropsOptions(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, 0)

	require.NoError(t, s.SetTickers(ctx, []string{"AAPL", "MSFT"}))
	require.NoError(t, s.SaveResult(ctx, jobs.JobResult{Ticker: "AAPL", OptionType: "american_put", Strike: 100, Days: 10, FairValue: 1}))

	require.NoError(t, s.DeleteTicker(ctx, "aapl"))
	tickers, err := s.Tickers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"MSFT"}, tickers)
	require.False(t, mr.Exists("option:AAPL:american_put:100:10"))
	require.False(t, mr.Exists("options_for:AAPL"))
}

func Test_ExpiredOptionsAreSkipped(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, time.Minute)

	require.NoError(t, s.SaveResult(ctx, jobs.JobResult{Ticker: "SPY", OptionType: "american_call", Strike: 500, Days: 7, FairValue: 3}))
	mr.FastForward(2 * time.Minute)

	opts, err := s.OptionsForTicker(ctx, "SPY")
	require.NoError(t, err)
	require.Empty(t, opts)

	members, err := mr.Members("options_for:SPY")
	require.True(t, err != nil || len(members) == 0)
}

// failCommand makes every call of one redis command fail.
type failCommand struct{ name string }

func (failCommand) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f failCommand) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == f.name {
			err := errors.New("READONLY replica")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failCommand) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func Test_ExpiredOptionsPruneFailure(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, time.Minute)

	require.NoError(t, s.SaveResult(ctx, jobs.JobResult{Ticker: "SPY", OptionType: "european_put", Strike: 480, Days: 14, FairValue: 2}))
	mr.FastForward(2 * time.Minute)

	s.client.AddHook(failCommand{name: "srem"})

	opts, err := s.OptionsForTicker(ctx, "SPY")
	require.Error(t, err)
	require.ErrorContains(t, err, "READONLY")
	require.Nil(t, opts)

	members, err := mr.Members("options_for:SPY")
	require.NoError(t, err)
	require.Len(t, members, 1)
}
