// Package generator produces synthetic market snapshots around fixed base prices.
package generator

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/marketboard/internal/market"
	"github.com/amirphl/marketboard/internal/tfutils"
)

const (
	// OrderBookDepth is the number of levels generated on each side.
	OrderBookDepth = 10

	maxChangePercent = 10.0
	spreadRatio      = 0.001
	levelStepRatio   = 0.1
	klineVolatility  = 0.02
)

// Symbols is the fixed trading-pair universe, in listing order.
var Symbols = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "ADAUSDT", "XRPUSDT",
	"SOLUSDT", "DOTUSDT", "DOGEUSDT", "AVAXUSDT", "SHIBUSDT",
	"MATICUSDT", "LTCUSDT", "UNIUSDT", "LINKUSDT", "ATOMUSDT",
	"ETCUSDT", "XLMUSDT", "BCHUSDT", "FILUSDT", "TRXUSDT",
}

// BasePrices anchors every generated figure for known symbols.
var BasePrices = map[string]float64{
	"BTCUSDT":   45000,
	"ETHUSDT":   3200,
	"BNBUSDT":   320,
	"ADAUSDT":   0.85,
	"XRPUSDT":   0.62,
	"SOLUSDT":   95,
	"DOTUSDT":   18,
	"DOGEUSDT":  0.08,
	"AVAXUSDT":  42,
	"SHIBUSDT":  0.000025,
	"MATICUSDT": 1.15,
	"LTCUSDT":   180,
	"UNIUSDT":   25,
	"LINKUSDT":  15,
	"ATOMUSDT":  12,
	"ETCUSDT":   35,
	"XLMUSDT":   0.25,
	"BCHUSDT":   420,
	"FILUSDT":   8.5,
	"TRXUSDT":   0.095,
}

// Generator is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

type Option func(*Generator)

// WithRand replaces the randomness source.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rnd = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func New(opts ...Option) *Generator {
	g := &Generator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// float returns a uniform value in [0,1). Callers must hold g.mu.
func (g *Generator) float() float64 {
	return g.rnd.Float64()
}

// basePrice must be called with g.mu held.
func (g *Generator) basePrice(symbol string) float64 {
	if p, ok := BasePrices[symbol]; ok {
		return p
	}
	return g.float() * 100
}

// TradingPairs returns a fresh snapshot for every symbol in Symbols.
func (g *Generator) TradingPairs() []market.TradingPair {
	g.mu.Lock()
	defer g.mu.Unlock()

	pairs := make([]market.TradingPair, 0, len(Symbols))
	for _, symbol := range Symbols {
		base := g.basePrice(symbol)
		changePercent := (g.float() - 0.5) * 2 * maxChangePercent
		change := base * changePercent / 100

		pairs = append(pairs, market.TradingPair{
			Symbol:                symbol,
			LastPrice:             max(base+change, market.MinPrice),
			Volume:                g.float()*10_000_000 + 100_000,
			PriceChange24h:        change,
			PriceChangePercent24h: changePercent,
		})
	}
	return pairs
}

// OrderBook builds OrderBookDepth levels per side around the symbol's base price.
func (g *Generator) OrderBook(symbol string) market.OrderBook {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := g.basePrice(symbol)
	spread := base * spreadRatio

	bids := make([]market.OrderBookEntry, OrderBookDepth)
	asks := make([]market.OrderBookEntry, OrderBookDepth)
	for i := 0; i < OrderBookDepth; i++ {
		offset := spread + float64(i)*spread*levelStepRatio
		bids[i] = market.OrderBookEntry{Price: base - offset, Quantity: g.float()*100 + 10}
		asks[i] = market.OrderBookEntry{Price: base + offset, Quantity: g.float()*100 + 10}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return market.OrderBook{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: g.now().UnixMilli(),
	}
}

// Klines returns limit candles ending at now, oldest first. Unknown interval
// codes are treated as 1m.
func (g *Generator) Klines(symbol, interval string, limit int) []market.Kline {
	if limit <= 0 {
		return []market.Kline{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	base := g.basePrice(symbol)
	now := g.now().UnixMilli()
	step := tfutils.IntervalMillis(interval)
	volatility := base * klineVolatility

	klines := make([]market.Kline, limit)
	for i := 0; i < limit; i++ {
		open := base + (g.float()-0.5)*volatility
		closePrice := open + (g.float()-0.5)*volatility*0.5
		high := max(open, closePrice) + g.float()*volatility*0.3
		low := min(open, closePrice) - g.float()*volatility*0.3

		klines[i] = market.Kline{
			Timestamp: now - int64(limit-i-1)*step,
			Open:      max(open, market.MinPrice),
			High:      max(high, market.MinPrice),
			Low:       max(low, market.MinPrice),
			Close:     max(closePrice, market.MinPrice),
			Volume:    g.float()*1_000_000 + 10_000,
		}
	}
	return klines
}
