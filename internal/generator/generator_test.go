package generator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/marketboard/internal/market"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGenerator(seed int64) *Generator {
	return New(
		WithRand(rand.New(rand.NewSource(seed))),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestTradingPairs(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		g := newTestGenerator(seed)
		pairs := g.TradingPairs()
		require.Len(t, pairs, len(Symbols))

		seen := make(map[string]bool)
		for i, p := range pairs {
			assert.Equal(t, Symbols[i], p.Symbol)
			assert.False(t, seen[p.Symbol], "duplicate symbol %s", p.Symbol)
			seen[p.Symbol] = true

			base := BasePrices[p.Symbol]
			assert.GreaterOrEqual(t, p.LastPrice, market.MinPrice)
			assert.LessOrEqual(t, p.LastPrice, max(base*1.1, market.MinPrice)+1e-12)
			if base*0.9 > market.MinPrice {
				assert.GreaterOrEqual(t, p.LastPrice, base*0.9-1e-9)
			}

			assert.GreaterOrEqual(t, p.PriceChangePercent24h, -10.0)
			assert.Less(t, p.PriceChangePercent24h, 10.0)
			assert.InDelta(t, base*p.PriceChangePercent24h/100, p.PriceChange24h, 1e-9)

			assert.GreaterOrEqual(t, p.Volume, 100_000.0)
			assert.Less(t, p.Volume, 10_100_000.0)
		}
	}
}

func TestOrderBook(t *testing.T) {
	t.Run("Known symbol", func(t *testing.T) {
		for seed := int64(1); seed <= 20; seed++ {
			ob := newTestGenerator(seed).OrderBook("ETHUSDT")

			assert.Equal(t, "ETHUSDT", ob.Symbol)
			assert.Equal(t, fixedNow.UnixMilli(), ob.Timestamp)
			require.Len(t, ob.Bids, OrderBookDepth)
			require.Len(t, ob.Asks, OrderBookDepth)
			require.NoError(t, ob.Validate())

			spread := 3200 * 0.001
			assert.InDelta(t, 3200-spread, ob.Bids[0].Price, 1e-9)
			assert.InDelta(t, 3200+spread, ob.Asks[0].Price, 1e-9)
			assert.InDelta(t, 3200+spread+9*spread*0.1, ob.Asks[9].Price, 1e-9)

			for _, lvl := range append(ob.Bids, ob.Asks...) {
				assert.GreaterOrEqual(t, lvl.Quantity, 10.0)
				assert.Less(t, lvl.Quantity, 110.0)
			}
		}
	})

	t.Run("Unknown symbol", func(t *testing.T) {
		ob := newTestGenerator(7).OrderBook("FOOBAR")
		require.Len(t, ob.Bids, OrderBookDepth)
		assert.NoError(t, ob.Validate())
		bid, _ := ob.BestBid()
		assert.Less(t, bid.Price, 100.0)
	})
}

func TestKlines(t *testing.T) {
	t.Run("BTCUSDT 1h x24 ends at now", func(t *testing.T) {
		klines := newTestGenerator(3).Klines("BTCUSDT", "1h", 24)
		require.Len(t, klines, 24)
		assert.Equal(t, fixedNow.UnixMilli(), klines[23].Timestamp)
		for i := 1; i < len(klines); i++ {
			assert.Equal(t, int64(3_600_000), klines[i].Timestamp-klines[i-1].Timestamp)
		}
	})

	t.Run("OHLC bounds", func(t *testing.T) {
		for _, symbol := range []string{"BTCUSDT", "SHIBUSDT", "DOGEUSDT", "UNKNOWN"} {
			for seed := int64(1); seed <= 10; seed++ {
				klines := newTestGenerator(seed).Klines(symbol, "5m", 50)
				require.Len(t, klines, 50)
				for _, k := range klines {
					assert.LessOrEqual(t, k.Low, min(k.Open, k.Close))
					assert.GreaterOrEqual(t, k.High, max(k.Open, k.Close))
					assert.GreaterOrEqual(t, k.Low, market.MinPrice)
					assert.NoError(t, k.Validate())
				}
			}
		}
	})

	t.Run("Unknown interval defaults to 1m", func(t *testing.T) {
		klines := newTestGenerator(1).Klines("ETHUSDT", "7m", 3)
		require.Len(t, klines, 3)
		assert.Equal(t, int64(60_000), klines[1].Timestamp-klines[0].Timestamp)
	})

	t.Run("Non-positive limit", func(t *testing.T) {
		g := newTestGenerator(1)
		assert.Empty(t, g.Klines("BTCUSDT", "1m", 0))
		assert.Empty(t, g.Klines("BTCUSDT", "1m", -5))
	})
}
