// Package cache keeps the active ticker registry and the latest fair value of
// every priced contract in Redis.
package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/redis/go-redis/v9"
)

const activeTickersKey = "active_tickers"

// CachedOption is the stored form of a successful job result.
type CachedOption struct {
	Ticker      string  `redis:"ticker" json:"ticker"`
	OptionType  string  `redis:"option_type" json:"option_type"`
	Strike      float64 `redis:"K" json:"K"`
	Days        int     `redis:"T" json:"T"`
	Spot        float64 `redis:"current_price" json:"current_price"`
	MarketPrice float64 `redis:"current_option_price" json:"current_option_price"`
	FairValue   float64 `redis:"fair_value" json:"fair_value"`
	Edge        string  `redis:"edge" json:"edge"`
	UpdatedAt   int64   `redis:"updated_at" json:"updated_at"`
}

type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewStore wraps client. A positive ttl expires cached options that stop being
// refreshed.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl, now: time.Now}
}

func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func optionKey(ticker, optionType string, strike float64, days int) string {
	return fmt.Sprintf("option:%s:%s:%s:%d", ticker, optionType, strconv.FormatFloat(strike, 'f', -1, 64), days)
}

func optionsForKey(ticker string) string {
	return "options_for:" + ticker
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SetTickers replaces the registry with tickers, keeping their order and
// dropping repeats.
func (s *Store) SetTickers(ctx context.Context, tickers []string) error {
	seen := make(map[string]bool, len(tickers))
	values := make([]interface{}, 0, len(tickers))
	for _, t := range tickers {
		t = NormalizeTicker(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		values = append(values, t)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, activeTickersKey)
		if len(values) > 0 {
			pipe.RPush(ctx, activeTickersKey, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set tickers: %w", err)
	}
	return nil
}

func (s *Store) AddTicker(ctx context.Context, ticker string) error {
	ticker = NormalizeTicker(ticker)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, activeTickersKey, 0, ticker)
		pipe.RPush(ctx, activeTickersKey, ticker)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add ticker %s: %w", ticker, err)
	}
	return nil
}

// DeleteTicker removes ticker from the registry along with every option cached
// for it.
func (s *Store) DeleteTicker(ctx context.Context, ticker string) error {
	ticker = NormalizeTicker(ticker)
	keys, err := s.client.SMembers(ctx, optionsForKey(ticker)).Result()
	if err != nil {
		return fmt.Errorf("delete ticker %s: %w", ticker, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, optionsForKey(ticker))
		pipe.LRem(ctx, activeTickersKey, 0, ticker)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete ticker %s: %w", ticker, err)
	}
	return nil
}

func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	tickers, err := s.client.LRange(ctx, activeTickersKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	return tickers, nil
}

// SaveResult overwrites the cached hash for the result's contract. Failed
// results are not cached.
func (s *Store) SaveResult(ctx context.Context, res jobs.JobResult) error {
	if res.Failed() {
		return nil
	}

	ticker := NormalizeTicker(res.Ticker)
	key := optionKey(ticker, res.OptionType, res.Strike, res.Days)
	entry := CachedOption{
		Ticker:      ticker,
		OptionType:  res.OptionType,
		Strike:      res.Strike,
		Days:        res.Days,
		Spot:        res.Spot,
		MarketPrice: res.MarketPrice,
		FairValue:   res.FairValue,
		Edge:        res.Edge().String(),
		UpdatedAt:   s.now().Unix(),
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, entry)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		pipe.SAdd(ctx, optionsForKey(ticker), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// OptionsForTicker returns the cached options for ticker ordered by type,
// days to expiry and strike. Members whose hash has expired are skipped.
func (s *Store) OptionsForTicker(ctx context.Context, ticker string) ([]CachedOption, error) {
	ticker = NormalizeTicker(ticker)
	keys, err := s.client.SMembers(ctx, optionsForKey(ticker)).Result()
	if err != nil {
		return nil, fmt.Errorf("options for %s: %w", ticker, err)
	}
	if len(keys) == 0 {
		return []CachedOption{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("options for %s: %w", ticker, err)
	}

	options := make([]CachedOption, 0, len(keys))
	var stale []interface{}
	for i, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			stale = append(stale, keys[i])
			continue
		}
		var opt CachedOption
		if err := cmd.Scan(&opt); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		options = append(options, opt)
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, optionsForKey(ticker), stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune expired options for %s: %w", ticker, err)
		}
	}

	sort.Slice(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.OptionType != b.OptionType {
			return a.OptionType < b.OptionType
		}
		if a.Days != b.Days {
			return a.Days < b.Days
		}
		return a.Strike < b.Strike
	})
	return options, nil
}
