// Package config
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amirphl/marketboard/internal/query"
	"github.com/amirphl/marketboard/internal/resolver"
	"github.com/amirphl/marketboard/internal/tfutils"
	"github.com/amirphl/marketboard/internal/utils"
)

/*
YAML config example:
mode: "watch"
listen_addr: ":8080"
endpoint: "http://localhost:8080/graphql"
request_timeout: "10s"
symbol: "BTCUSDT"
interval: "1h"
limit: 24
search: "eth"
pairs_interval: "5s"
orderbook_interval: "2s"
klines_interval: "10s"
cache_ttl: "5s"
latency_scale: 1.0
log:
  level: "info"
  file: "logs/marketboard.log"
  max_size_mb: 10
  max_backups: 3
  max_age_days: 7
  console: true
*/

const (
	ModeServe = "serve"
	ModeWatch = "watch"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Mode           string        `yaml:"mode"`
	ListenAddr     string        `yaml:"listen_addr"`
	Endpoint       string        `yaml:"endpoint"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Symbol     string `yaml:"symbol"`
	Interval   string `yaml:"interval"`
	Limit      int    `yaml:"limit"`
	SearchTerm string `yaml:"search"`

	PairsInterval     time.Duration `yaml:"pairs_interval"`
	OrderBookInterval time.Duration `yaml:"orderbook_interval"`
	KlinesInterval    time.Duration `yaml:"klines_interval"`

	CacheTTL     time.Duration `yaml:"cache_ttl"`
	LatencyScale float64       `yaml:"latency_scale"`

	Log utils.LogConfig `yaml:"log"`
}

// Default returns the configuration used when no flag, env var or file says
// otherwise.
func Default() Config {
	return Config{
		Mode:              ModeWatch,
		ListenAddr:        ":8080",
		RequestTimeout:    10 * time.Second,
		Symbol:            "BTCUSDT",
		Interval:          tfutils.DefaultInterval,
		Limit:             resolver.DefaultKlineLimit,
		PairsInterval:     query.TradingPairsInterval,
		OrderBookInterval: query.OrderBookInterval,
		KlinesInterval:    query.KlinesInterval,
		CacheTTL:          resolver.DefaultCacheTTL,
		LatencyScale:      1,
		Log: utils.LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Console:    true,
		},
	}
}

// Load builds the config from defaults, environment, args and finally the
// YAML file named by -config, each layer overriding the previous one.
func Load(args []string) (Config, error) {
	cfg := Default()
	if v := os.Getenv("MARKETBOARD_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	fs := flag.NewFlagSet("marketboard", flag.ContinueOnError)
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Mode: serve or watch")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address for serve mode")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Remote query endpoint; empty uses the in-process mock resolver")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Timeout for a single remote query")
	fs.StringVar(&cfg.Symbol, "symbol", cfg.Symbol, "Selected trading pair")
	fs.StringVar(&cfg.Interval, "interval", cfg.Interval, "Kline interval: "+strings.Join(tfutils.SupportedIntervals(), ", "))
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "Number of klines to fetch")
	fs.StringVar(&cfg.SearchTerm, "search", cfg.SearchTerm, "Filter trading pairs by symbol")
	fs.DurationVar(&cfg.PairsInterval, "pairs-interval", cfg.PairsInterval, "Trading pairs poll interval")
	fs.DurationVar(&cfg.OrderBookInterval, "orderbook-interval", cfg.OrderBookInterval, "Order book poll interval")
	fs.DurationVar(&cfg.KlinesInterval, "klines-interval", cfg.KlinesInterval, "Klines poll interval")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Trading pairs cache lifetime")
	fs.Float64Var(&cfg.LatencyScale, "latency-scale", cfg.LatencyScale, "Multiplier for simulated latency (0 disables it)")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "Rotating JSON log file; empty disables it")
	configFile := fs.String("config", "", "Path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Mode != ModeServe && c.Mode != ModeWatch {
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Mode == ModeServe && c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required in serve mode"))
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("endpoint %q is not an http(s) URL", c.Endpoint))
		}
	}
	if !tfutils.IsValidInterval(c.Interval) {
		errs = append(errs, fmt.Errorf("unsupported interval %q", c.Interval))
	}
	if c.Limit <= 0 || c.Limit > resolver.MaxKlineLimit {
		errs = append(errs, fmt.Errorf("limit %d out of range 1..%d", c.Limit, resolver.MaxKlineLimit))
	}
	for name, d := range map[string]time.Duration{
		"request_timeout":    c.RequestTimeout,
		"pairs_interval":     c.PairsInterval,
		"orderbook_interval": c.OrderBookInterval,
		"klines_interval":    c.KlinesInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	if c.LatencyScale < 0 {
		errs = append(errs, errors.New("latency_scale must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// RemoteMode reports whether queries go to an external endpoint.
func (c Config) RemoteMode() bool {
	return c.Endpoint != ""
}
