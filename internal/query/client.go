package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/marketboard/internal/market"
	"github.com/amirphl/marketboard/internal/resolver"
)

// Executor runs a named operation. *resolver.Resolver and *remote.Client both
// satisfy it.
type Executor interface {
	Execute(ctx context.Context, op resolver.Operation, params resolver.Params) (resolver.Result, error)
}

var errEmptyResult = errors.New("empty result")

// Client exposes typed fetches over an Executor.
type Client struct {
	exec Executor
}

func NewClient(exec Executor) *Client {
	return &Client{exec: exec}
}

func (c *Client) TradingPairs(ctx context.Context) ([]market.TradingPair, error) {
	res, err := c.exec.Execute(ctx, resolver.OpGetTradingPairs, nil)
	if err != nil {
		return nil, err
	}
	if res.TradingPairs == nil {
		return []market.TradingPair{}, nil
	}
	return res.TradingPairs, nil
}

func (c *Client) OrderBook(ctx context.Context, symbol string) (market.OrderBook, error) {
	res, err := c.exec.Execute(ctx, resolver.OpGetOrderBook, resolver.Params{"symbol": symbol})
	if err != nil {
		return market.OrderBook{}, err
	}
	if res.OrderBook == nil {
		return market.OrderBook{}, fmt.Errorf("%s %s: %w", resolver.OpGetOrderBook, symbol, errEmptyResult)
	}
	return *res.OrderBook, nil
}

func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Kline, error) {
	res, err := c.exec.Execute(ctx, resolver.OpGetKlines, resolver.Params{
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	})
	if err != nil {
		return nil, err
	}
	if res.Klines == nil {
		return []market.Kline{}, nil
	}
	return res.Klines, nil
}
