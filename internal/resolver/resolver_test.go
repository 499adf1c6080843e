package resolver

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amirphl/marketboard/internal/generator"
	"github.com/amirphl/marketboard/internal/market"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingSource records how often each generator entry point is reached.
type countingSource struct {
	gen   *generator.Generator
	mu    sync.Mutex
	calls map[string]int
}

func newCountingSource(now func() time.Time) *countingSource {
	return &countingSource{
		gen:   generator.New(generator.WithRand(rand.New(rand.NewSource(1))), generator.WithClock(now)),
		calls: make(map[string]int),
	}
}

func (s *countingSource) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *countingSource) inc(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *countingSource) TradingPairs() []market.TradingPair {
	s.inc("pairs")
	return s.gen.TradingPairs()
}

func (s *countingSource) OrderBook(symbol string) market.OrderBook {
	s.inc("orderbook")
	return s.gen.OrderBook(symbol)
}

func (s *countingSource) Klines(symbol, interval string, limit int) []market.Kline {
	s.inc("klines")
	return s.gen.Klines(symbol, interval, limit)
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func noFailures() []Option {
	var opts []Option
	for op, p := range DefaultPolicies() {
		p.FailureRate = 0
		opts = append(opts, WithPolicy(op, p))
	}
	return opts
}

func newTestResolver(t *testing.T, extra ...Option) (*Resolver, *fakeClock, *countingSource, *recordedSleeps) {
	t.Helper()
	clock := newFakeClock()
	src := newCountingSource(clock.Now)
	sleeps := &recordedSleeps{}
	opts := []Option{
		WithClock(clock.Now),
		WithSource(src),
		WithSleeper(sleeps.sleep),
		WithRand(rand.New(rand.NewSource(42))),
		WithLogger(zap.NewNop()),
	}
	opts = append(opts, noFailures()...)
	opts = append(opts, extra...)
	return New(opts...), clock, src, sleeps
}

func TestOperationNames(t *testing.T) {
	for _, op := range Operations() {
		parsed, err := ParseOperation(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}

	_, err := ParseOperation("GetTradingPairsAndMore")
	assert.ErrorIs(t, err, ErrUnknownOperation)
	assert.Equal(t, "Operation(99)", Operation(99).String())
}

func TestExecuteDispatch(t *testing.T) {
	r, _, _, _ := newTestResolver(t)
	ctx := context.Background()

	t.Run("Trading pairs", func(t *testing.T) {
		res, err := r.Execute(ctx, OpGetTradingPairs, nil)
		require.NoError(t, err)
		assert.Len(t, res.TradingPairs, len(generator.Symbols))
		assert.Nil(t, res.OrderBook)
	})

	t.Run("Order book", func(t *testing.T) {
		res, err := r.Execute(ctx, OpGetOrderBook, Params{"symbol": "BTCUSDT"})
		require.NoError(t, err)
		require.NotNil(t, res.OrderBook)
		assert.Equal(t, "BTCUSDT", res.OrderBook.Symbol)
	})

	t.Run("Klines with JSON-decoded limit", func(t *testing.T) {
		res, err := r.Execute(ctx, OpGetKlines, Params{"symbol": "ETHUSDT", "interval": "15m", "limit": float64(30)})
		require.NoError(t, err)
		require.Len(t, res.Klines, 30)
		assert.Equal(t, int64(15*60*1000), res.Klines[1].Timestamp-res.Klines[0].Timestamp)
	})

	t.Run("Klines defaults", func(t *testing.T) {
		res, err := r.Execute(ctx, OpGetKlines, Params{"symbol": "ETHUSDT"})
		require.NoError(t, err)
		require.Len(t, res.Klines, DefaultKlineLimit)
		assert.Equal(t, int64(60_000), res.Klines[1].Timestamp-res.Klines[0].Timestamp)
	})

	t.Run("Unknown operation", func(t *testing.T) {
		_, err := r.Execute(ctx, Operation(42), nil)
		assert.ErrorIs(t, err, ErrUnknownOperation)
		assert.Equal(t, KindUnknown, Kind(err))
	})
}

func TestKlinesScenario(t *testing.T) {
	r, clock, _, _ := newTestResolver(t)

	klines, err := r.Klines(context.Background(), "BTCUSDT", "1h", 24)
	require.NoError(t, err)
	require.Len(t, klines, 24)
	assert.Equal(t, clock.Now().UnixMilli(), klines[23].Timestamp)
	for i := 1; i < len(klines); i++ {
		assert.Equal(t, int64(3_600_000), klines[i].Timestamp-klines[i-1].Timestamp)
	}
}

func TestValidation(t *testing.T) {
	r, _, src, sleeps := newTestResolver(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		op     Operation
		params Params
	}{
		{"order book empty symbol", OpGetOrderBook, Params{"symbol": ""}},
		{"order book missing symbol", OpGetOrderBook, nil},
		{"klines empty symbol", OpGetKlines, Params{"symbol": "", "interval": "1h", "limit": 24}},
		{"klines negative limit", OpGetKlines, Params{"symbol": "BTCUSDT", "limit": -1}},
		{"klines limit too large", OpGetKlines, Params{"symbol": "BTCUSDT", "limit": MaxKlineLimit + 1}},
		{"klines fractional limit", OpGetKlines, Params{"symbol": "BTCUSDT", "limit": 2.5}},
		{"klines non-numeric limit", OpGetKlines, Params{"symbol": "BTCUSDT", "limit": "ten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(ctx, tt.op, tt.params)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, KindValidation, Kind(err))
		})
	}

	assert.Zero(t, src.count("orderbook"))
	assert.Zero(t, src.count("klines"))
	assert.Empty(t, sleeps.delays, "validation must fail before any simulated latency")
}

func TestTradingPairsCache(t *testing.T) {
	r, clock, src, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.TradingPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.count("pairs"))

	clock.Advance(4999 * time.Millisecond)
	second, err := r.TradingPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.count("pairs"))

	clock.Advance(time.Millisecond)
	third, err := r.TradingPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.count("pairs"))
	assert.NotEqual(t, first, third)

	t.Run("Returned list is a copy", func(t *testing.T) {
		third[0].LastPrice = -1
		again, err := r.TradingPairs(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, -1.0, again[0].LastPrice)
	})
}

func TestCustomCacheTTL(t *testing.T) {
	r, clock, src, _ := newTestResolver(t, WithCacheTTL(time.Second))
	ctx := context.Background()

	_, err := r.TradingPairs(ctx)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = r.TradingPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.count("pairs"))
}

func TestLatencyWindows(t *testing.T) {
	r, _, _, sleeps := newTestResolver(t)
	ctx := context.Background()
	policies := DefaultPolicies()

	for i := 0; i < 20; i++ {
		_, err := r.TradingPairs(ctx)
		require.NoError(t, err)
		_, err = r.OrderBook(ctx, "BTCUSDT")
		require.NoError(t, err)
		_, err = r.Klines(ctx, "BTCUSDT", "1m", 5)
		require.NoError(t, err)
	}

	require.Len(t, sleeps.delays, 60)
	order := []Operation{OpGetTradingPairs, OpGetOrderBook, OpGetKlines}
	for i, d := range sleeps.delays {
		p := policies[order[i%3]]
		assert.GreaterOrEqual(t, d, p.MinLatency)
		assert.LessOrEqual(t, d, p.MaxLatency)
	}
}

func TestInjectedFailures(t *testing.T) {
	always := Policy{FailureRate: 1}
	r, _, src, _ := newTestResolver(t,
		WithPolicy(OpGetTradingPairs, always),
		WithPolicy(OpGetOrderBook, always),
		WithPolicy(OpGetKlines, always),
	)
	ctx := context.Background()

	_, err := r.TradingPairs(ctx)
	assert.ErrorIs(t, err, ErrInjectedFailure)
	assert.Equal(t, KindFailure, Kind(err))

	_, err = r.OrderBook(ctx, "SOLUSDT")
	require.ErrorIs(t, err, ErrInjectedFailure)
	assert.Contains(t, err.Error(), "SOLUSDT")

	_, err = r.Klines(ctx, "DOTUSDT", "1m", 10)
	require.ErrorIs(t, err, ErrInjectedFailure)
	assert.Contains(t, err.Error(), "DOTUSDT")

	assert.Zero(t, src.count("pairs"))
	assert.Zero(t, src.count("orderbook"))
	assert.Zero(t, src.count("klines"))
}

func TestFailureRateIsApproximatelyHonored(t *testing.T) {
	r, _, _, _ := newTestResolver(t, WithPolicy(OpGetOrderBook, Policy{FailureRate: 0.3}))
	ctx := context.Background()

	failures := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if _, err := r.OrderBook(ctx, "BTCUSDT"); err != nil {
			require.ErrorIs(t, err, ErrInjectedFailure)
			failures++
		}
	}
	assert.InDelta(t, 0.3, float64(failures)/n, 0.05)
}

func TestCanceledContext(t *testing.T) {
	r, _, src, _ := newTestResolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.OrderBook(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, Kind(err))
	assert.Zero(t, src.count("orderbook"))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestKindRoundTrip(t *testing.T) {
	for _, sentinel := range []error{ErrValidation, ErrInjectedFailure, ErrUnknownOperation, context.Canceled} {
		assert.Same(t, sentinel, SentinelFor(Kind(sentinel)))
	}
	assert.Equal(t, KindInternal, Kind(errors.New("boom")))
	assert.Nil(t, SentinelFor(KindInternal))
}

func TestPolicyScaled(t *testing.T) {
	p := Policy{MinLatency: 200 * time.Millisecond, MaxLatency: 800 * time.Millisecond, FailureRate: 0.05}

	half := p.Scaled(0.5)
	assert.Equal(t, 100*time.Millisecond, half.MinLatency)
	assert.Equal(t, 400*time.Millisecond, half.MaxLatency)
	assert.Equal(t, 0.05, half.FailureRate)

	assert.Zero(t, p.Scaled(-1).MaxLatency)
}
