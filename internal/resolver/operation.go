package resolver

import (
	"fmt"
	"math"
	"strconv"

	"github.com/amirphl/marketboard/internal/market"
	"github.com/amirphl/marketboard/internal/tfutils"
)

// Operation is the closed set of queries the resolver understands.
type Operation int

const (
	OpGetTradingPairs Operation = iota + 1
	OpGetOrderBook
	OpGetKlines
)

const (
	DefaultKlineLimit = 100
)

var operationNames = map[Operation]string{
	OpGetTradingPairs: "GetTradingPairs",
	OpGetOrderBook:    "GetOrderBook",
	OpGetKlines:       "GetKlines",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// Operations lists every supported operation.
func Operations() []Operation {
	return []Operation{OpGetTradingPairs, OpGetOrderBook, OpGetKlines}
}

// ParseOperation resolves an operation by its exact name.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// Params carries query variables. Values decoded from JSON are accepted as-is.
type Params map[string]any

func (p Params) Symbol() string {
	return p.String("symbol")
}

// Interval returns the interval variable or tfutils.DefaultInterval.
func (p Params) Interval() string {
	if v := p.String("interval"); v != "" {
		return v
	}
	return tfutils.DefaultInterval
}

// Limit returns the limit variable or DefaultKlineLimit when absent.
func (p Params) Limit() (int, error) {
	v, ok := p["limit"]
	if !ok || v == nil {
		return DefaultKlineLimit, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: limit must be an integer, got %v", ErrValidation, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%w: limit must be an integer, got %q", ErrValidation, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: limit has unsupported type %T", ErrValidation, v)
	}
}

func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Result holds exactly one populated field, matching the operation executed.
type Result struct {
	TradingPairs []market.TradingPair `json:"tradingPairs,omitempty"`
	OrderBook    *market.OrderBook    `json:"orderBook,omitempty"`
	Klines       []market.Kline       `json:"klines,omitempty"`
}
