// Package resolver serves named market-data queries from the synthetic
// generator, adding simulated latency, failure injection and a short-lived
// trading-pair cache.
package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amirphl/marketboard/internal/generator"
	"github.com/amirphl/marketboard/internal/market"
	"github.com/amirphl/marketboard/internal/utils"
)

const (
	DefaultCacheTTL = 5 * time.Second
	MaxKlineLimit   = 1000
)

// Policy describes the simulated network behaviour of one operation.
type Policy struct {
	MinLatency  time.Duration `yaml:"min_latency"`
	MaxLatency  time.Duration `yaml:"max_latency"`
	FailureRate float64       `yaml:"failure_rate"`
}

// DefaultPolicies returns the stock latency window and failure rate per operation.
func DefaultPolicies() map[Operation]Policy {
	return map[Operation]Policy{
		OpGetTradingPairs: {MinLatency: 200 * time.Millisecond, MaxLatency: 800 * time.Millisecond, FailureRate: 0.05},
		OpGetOrderBook:    {MinLatency: 100 * time.Millisecond, MaxLatency: 300 * time.Millisecond, FailureRate: 0.03},
		OpGetKlines:       {MinLatency: 300 * time.Millisecond, MaxLatency: 600 * time.Millisecond, FailureRate: 0.02},
	}
}

// Scaled multiplies the latency window by f; the failure rate is unchanged.
func (p Policy) Scaled(f float64) Policy {
	if f < 0 {
		f = 0
	}
	p.MinLatency = time.Duration(float64(p.MinLatency) * f)
	p.MaxLatency = time.Duration(float64(p.MaxLatency) * f)
	return p
}

// Source produces the data the resolver serves.
type Source interface {
	TradingPairs() []market.TradingPair
	OrderBook(symbol string) market.OrderBook
	Klines(symbol, interval string, limit int) []market.Kline
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type handler func(ctx context.Context, params Params) (Result, error)

type Resolver struct {
	source   Source
	policies map[Operation]Policy
	handlers map[Operation]handler
	now      func() time.Time
	sleep    Sleeper
	cacheTTL time.Duration
	logger   *zap.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand

	cacheMu    sync.Mutex
	pairsCache []market.TradingPair
	lastUpdate time.Time
}

type Option func(*Resolver)

func WithSource(s Source) Option {
	return func(r *Resolver) { r.source = s }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithSleeper(s Sleeper) Option {
	return func(r *Resolver) { r.sleep = s }
}

func WithRand(rnd *rand.Rand) Option {
	return func(r *Resolver) { r.rnd = rnd }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.cacheTTL = ttl }
}

// WithPolicy overrides the simulated behaviour of a single operation.
func WithPolicy(op Operation, p Policy) Option {
	return func(r *Resolver) { r.policies[op] = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		policies: DefaultPolicies(),
		now:      time.Now,
		sleep:    sleepContext,
		cacheTTL: DefaultCacheTTL,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.source == nil {
		r.source = generator.New(generator.WithClock(r.now))
	}
	if r.logger == nil {
		r.logger = utils.GetLogger()
	}
	r.handlers = map[Operation]handler{
		OpGetTradingPairs: func(ctx context.Context, _ Params) (Result, error) {
			pairs, err := r.TradingPairs(ctx)
			return Result{TradingPairs: pairs}, err
		},
		OpGetOrderBook: func(ctx context.Context, p Params) (Result, error) {
			ob, err := r.OrderBook(ctx, p.Symbol())
			if err != nil {
				return Result{}, err
			}
			return Result{OrderBook: &ob}, nil
		},
		OpGetKlines: func(ctx context.Context, p Params) (Result, error) {
			limit, err := p.Limit()
			if err != nil {
				return Result{}, err
			}
			klines, err := r.Klines(ctx, p.Symbol(), p.Interval(), limit)
			return Result{Klines: klines}, err
		},
	}
	return r
}

// Execute routes op to its handler.
func (r *Resolver) Execute(ctx context.Context, op Operation, params Params) (Result, error) {
	h, ok := r.handlers[op]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	start := r.now()
	res, err := h(ctx, params)
	if err != nil {
		r.logger.Debug("Resolver | query failed",
			zap.Stringer("operation", op),
			zap.String("symbol", params.Symbol()),
			zap.String("kind", string(Kind(err))),
			zap.Error(err))
		return Result{}, err
	}
	r.logger.Debug("Resolver | query served",
		zap.Stringer("operation", op),
		zap.String("symbol", params.Symbol()),
		zap.Duration("elapsed", r.now().Sub(start)))
	return res, nil
}

// TradingPairs returns the full pair list, regenerating it once the cached
// copy reaches the cache TTL.
func (r *Resolver) TradingPairs(ctx context.Context) ([]market.TradingPair, error) {
	if err := r.simulate(ctx, OpGetTradingPairs); err != nil {
		return nil, fmt.Errorf("%w: network connection failed, please retry later", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	now := r.now()
	if len(r.pairsCache) == 0 || now.Sub(r.lastUpdate) >= r.cacheTTL {
		r.pairsCache = r.source.TradingPairs()
		r.lastUpdate = now
	}
	return slices.Clone(r.pairsCache), nil
}

func (r *Resolver) OrderBook(ctx context.Context, symbol string) (market.OrderBook, error) {
	if symbol == "" {
		return market.OrderBook{}, fmt.Errorf("%w: trading pair symbol cannot be empty", ErrValidation)
	}
	if err := r.simulate(ctx, OpGetOrderBook); err != nil {
		return market.OrderBook{}, fmt.Errorf("%w: failed to fetch %s order book", err, symbol)
	}
	return r.source.OrderBook(symbol), nil
}

func (r *Resolver) Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Kline, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: trading pair symbol cannot be empty", ErrValidation)
	}
	if limit < 0 || limit > MaxKlineLimit {
		return nil, fmt.Errorf("%w: limit must be between 0 and %d, got %d", ErrValidation, MaxKlineLimit, limit)
	}
	if err := r.simulate(ctx, OpGetKlines); err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s klines", err, symbol)
	}
	return r.source.Klines(symbol, interval, limit), nil
}

// simulate waits out the operation's latency and then rolls its failure rate.
func (r *Resolver) simulate(ctx context.Context, op Operation) error {
	p := r.policies[op]

	r.rndMu.Lock()
	delay := p.MinLatency
	if p.MaxLatency > p.MinLatency {
		delay += time.Duration(r.rnd.Float64() * float64(p.MaxLatency-p.MinLatency))
	}
	r.rndMu.Unlock()

	if err := r.sleep(ctx, delay); err != nil {
		return err
	}

	r.rndMu.Lock()
	failed := r.rnd.Float64() < p.FailureRate
	r.rndMu.Unlock()

	if failed {
		return ErrInjectedFailure
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
