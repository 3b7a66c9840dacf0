// Package config loads pricer settings from an optional config file, a .env
// file and PRICER_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/bcdannyboy/cnpricer/poller"
	"github.com/bcdannyboy/cnpricer/solver"
	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/cpu"
	"github.com/spf13/viper"
)

const EnvPrefix = "PRICER"

type Config struct {
	Workers      int     `mapstructure:"workers"`
	Lookup       string  `mapstructure:"lookup"`
	MaxGridNodes int     `mapstructure:"max_grid_nodes"`
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`

	Poll    PollConfig    `mapstructure:"poll"`
	Redis   RedisConfig   `mapstructure:"redis"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Tradier TradierConfig `mapstructure:"tradier"`
	Slack   SlackConfig   `mapstructure:"slack"`
	Log     logger.Config `mapstructure:"log"`
}

type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MinDTE      int           `mapstructure:"min_dte"`
	MaxDTE      int           `mapstructure:"max_dte"`
	HistoryDays int           `mapstructure:"history_days"`
	Volatility  string        `mapstructure:"volatility"`
	Tickers     []string      `mapstructure:"tickers"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type TradierConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

type SlackConfig struct {
	AppToken string `mapstructure:"app_token"`
	BotToken string `mapstructure:"bot_token"`
}

func (c SlackConfig) Enabled() bool {
	return c.AppToken != "" && c.BotToken != ""
}

func defaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workers", defaultWorkers())
	v.SetDefault("lookup", "nearest")
	v.SetDefault("max_grid_nodes", 0)
	v.SetDefault("risk_free_rate", 0.045)

	v.SetDefault("poll.interval", 30*time.Second)
	v.SetDefault("poll.min_dte", 5)
	v.SetDefault("poll.max_dte", 45)
	v.SetDefault("poll.history_days", 365)
	v.SetDefault("poll.volatility", "close_to_close")
	v.SetDefault("poll.tickers", []string{"AAPL", "GOOG", "CELH", "MSFT"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.result_ttl", 24*time.Hour)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("tradier.token", "")
	v.SetDefault("tradier.base_url", "https://api.tradier.com/v1")

	v.SetDefault("slack.app_token", "")
	v.SetDefault("slack.bot_token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "logs/pricer.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Load reads path when it is non-empty. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var ErrInvalidConfig = errors.New("invalid config")

func (c *Config) Validate() error {
	if _, err := solver.ParseLookup(c.Lookup); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.MaxGridNodes < 0:
		return fmt.Errorf("%w: max_grid_nodes must not be negative", ErrInvalidConfig)
	case c.Poll.Interval <= 0:
		return fmt.Errorf("%w: poll.interval must be positive", ErrInvalidConfig)
	case c.Poll.MinDTE < 1 || c.Poll.MaxDTE < c.Poll.MinDTE:
		return fmt.Errorf("%w: poll dte window [%d, %d]", ErrInvalidConfig, c.Poll.MinDTE, c.Poll.MaxDTE)
	case !poller.Estimator(c.Poll.Volatility).Valid():
		return fmt.Errorf("%w: unknown volatility estimator %q", ErrInvalidConfig, c.Poll.Volatility)
	}
	return nil
}

func (c *Config) LookupMode() solver.Lookup {
	l, _ := solver.ParseLookup(c.Lookup)
	return l
}
