package query

import (
	"context"
	"sync"
	"time"

	"github.com/amirphl/marketboard/internal/market"
)

const (
	TradingPairsInterval = 5 * time.Second
	OrderBookInterval    = 2 * time.Second
	KlinesInterval       = 10 * time.Second
)

// TradingPairsQuery polls the full pair list.
type TradingPairsQuery struct {
	*Query[[]market.TradingPair]
}

func NewTradingPairs(c *Client, opts ...Option) *TradingPairsQuery {
	return &TradingPairsQuery{
		Query: newQuery("trading-pairs", TradingPairsInterval, c.TradingPairs, true, opts),
	}
}

// OrderBookQuery polls one symbol's order book. It is suspended while the
// symbol is empty.
type OrderBookQuery struct {
	*Query[market.OrderBook]

	client *Client
	mu     sync.Mutex
	symbol string
}

func NewOrderBook(c *Client, symbol string, opts ...Option) *OrderBookQuery {
	q := &OrderBookQuery{client: c, symbol: symbol}
	q.Query = newQuery("order-book", OrderBookInterval, q.fetcher(symbol), symbol != "", opts)
	return q
}

func (q *OrderBookQuery) fetcher(symbol string) Fetcher[market.OrderBook] {
	return func(ctx context.Context) (market.OrderBook, error) {
		return q.client.OrderBook(ctx, symbol)
	}
}

func (q *OrderBookQuery) Symbol() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.symbol
}

// SetSymbol switches the query to another symbol. Setting the current symbol
// is a no-op.
func (q *OrderBookQuery) SetSymbol(symbol string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if symbol == q.symbol {
		return
	}
	q.symbol = symbol
	q.Rebind(q.fetcher(symbol), symbol != "")
}

// KlinesQuery polls a candle series keyed by symbol, interval and limit.
type KlinesQuery struct {
	*Query[[]market.Kline]

	client   *Client
	mu       sync.Mutex
	symbol   string
	interval string
	limit    int
}

func NewKlines(c *Client, symbol, interval string, limit int, opts ...Option) *KlinesQuery {
	q := &KlinesQuery{client: c, symbol: symbol, interval: interval, limit: limit}
	q.Query = newQuery("klines", KlinesInterval, q.fetcher(symbol, interval, limit), symbol != "", opts)
	return q
}

func (q *KlinesQuery) fetcher(symbol, interval string, limit int) Fetcher[[]market.Kline] {
	return func(ctx context.Context) ([]market.Kline, error) {
		return q.client.Klines(ctx, symbol, interval, limit)
	}
}

// Params returns the current symbol, interval and limit.
func (q *KlinesQuery) Params() (symbol, interval string, limit int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.symbol, q.interval, q.limit
}

func (q *KlinesQuery) SetSymbol(symbol string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if symbol == q.symbol {
		return
	}
	q.symbol = symbol
	q.rebindLocked()
}

func (q *KlinesQuery) SetInterval(interval string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if interval == q.interval {
		return
	}
	q.interval = interval
	q.rebindLocked()
}

func (q *KlinesQuery) rebindLocked() {
	q.Rebind(q.fetcher(q.symbol, q.interval, q.limit), q.symbol != "")
}
