// Package market
package market

import (
	"errors"
	"fmt"
	"strings"
)

// MinPrice is the floor applied to every generated price.
const MinPrice = 0.01

// TradingPair is a 24h ticker snapshot for one symbol.
type TradingPair struct {
	Symbol                string  `json:"symbol"`
	LastPrice             float64 `json:"lastPrice"`
	Volume                float64 `json:"volume"`
	PriceChange24h        float64 `json:"priceChange24h"`
	PriceChangePercent24h float64 `json:"priceChangePercent24h"`
}

// OrderBookEntry is a single price level.
type OrderBookEntry struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook represents the L2 orderbook snapshot.
// Bids are sorted by price descending, asks ascending.
type OrderBook struct {
	Symbol    string           `json:"symbol"`
	Bids      []OrderBookEntry `json:"bids"`
	Asks      []OrderBookEntry `json:"asks"`
	Timestamp int64            `json:"timestamp"` // unix millis
}

// BestBid returns the highest bid, if any.
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	if len(ob.Bids) == 0 {
		return OrderBookEntry{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	if len(ob.Asks) == 0 {
		return OrderBookEntry{}, false
	}
	return ob.Asks[0], true
}

// Spread is best ask minus best bid. It is zero when either side is empty.
func (ob *OrderBook) Spread() float64 {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	return ask.Price - bid.Price
}

// Validate checks side ordering and that the book is not crossed.
func (ob *OrderBook) Validate() error {
	if ob.Symbol == "" {
		return errors.New("orderbook symbol cannot be empty")
	}
	for i := 1; i < len(ob.Bids); i++ {
		if ob.Bids[i].Price >= ob.Bids[i-1].Price {
			return fmt.Errorf("bids not strictly descending at level %d", i)
		}
	}
	for i := 1; i < len(ob.Asks); i++ {
		if ob.Asks[i].Price <= ob.Asks[i-1].Price {
			return fmt.Errorf("asks not strictly ascending at level %d", i)
		}
	}
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if okBid && okAsk && bid.Price >= ask.Price {
		return fmt.Errorf("crossed book: best bid %.8f >= best ask %.8f", bid.Price, ask.Price)
	}
	return nil
}

// Kline is one OHLCV candle.
type Kline struct {
	Timestamp int64   `json:"timestamp"` // unix millis, bucket open
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Validate checks if a kline has valid data
func (k *Kline) Validate() error {
	if k.Timestamp <= 0 {
		return errors.New("kline timestamp must be positive")
	}
	if k.Open <= 0 || k.High <= 0 || k.Low <= 0 || k.Close <= 0 {
		return errors.New("kline prices must be positive")
	}
	if k.High < k.Low {
		return errors.New("kline high cannot be less than low")
	}
	if k.Low > min(k.Open, k.Close) {
		return errors.New("kline low must not exceed open or close")
	}
	if k.High < max(k.Open, k.Close) {
		return errors.New("kline high must not be below open or close")
	}
	if k.Volume < 0 {
		return errors.New("kline volume cannot be negative")
	}
	return nil
}

// ChartPoint is the time/OHLC tuple handed to candlestick charts.
type ChartPoint struct {
	Time  int64   `json:"time"` // unix seconds
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

func ToChartPoints(klines []Kline) []ChartPoint {
	points := make([]ChartPoint, len(klines))
	for i, k := range klines {
		points[i] = ChartPoint{
			Time:  k.Timestamp / 1000,
			Open:  k.Open,
			High:  k.High,
			Low:   k.Low,
			Close: k.Close,
		}
	}
	return points
}

// FilterPairs returns the pairs whose symbol contains term, ignoring case.
// A blank term returns pairs unchanged.
func FilterPairs(pairs []TradingPair, term string) []TradingPair {
	term = strings.TrimSpace(term)
	if term == "" {
		return pairs
	}
	needle := strings.ToLower(term)
	filtered := make([]TradingPair, 0, len(pairs))
	for _, p := range pairs {
		if strings.Contains(strings.ToLower(p.Symbol), needle) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
