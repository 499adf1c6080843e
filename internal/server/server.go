// Package server exposes the resolver over HTTP and streams polled query
// state over websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/amirphl/marketboard/internal/query"
	"github.com/amirphl/marketboard/internal/remote"
	"github.com/amirphl/marketboard/internal/resolver"
	"github.com/amirphl/marketboard/internal/utils"
)

// Config tunes the streaming endpoints.
type Config struct {
	TradingPairsInterval time.Duration
	OrderBookInterval    time.Duration
	RequestTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		TradingPairsInterval: query.TradingPairsInterval,
		OrderBookInterval:    query.OrderBookInterval,
		RequestTimeout:       remote.DefaultTimeout,
	}
}

type FiberServer struct {
	*fiber.App

	exec   query.Executor
	client *query.Client
	cfg    Config
	logger *zap.Logger
}

func New(exec query.Executor, cfg Config) *FiberServer {
	return &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "marketboard",
			AppName:               "marketboard",
			DisableStartupMessage: true,
		}),
		exec:   exec,
		client: query.NewClient(exec),
		cfg:    cfg,
		logger: utils.GetLogger(),
	}
}

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Get("/healthz", s.healthHandler)
	s.App.Post("/graphql", s.queryHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws/pairs", websocket.New(s.tradingPairsStream))
	s.App.Get("/ws/orderbook/:symbol", websocket.New(s.orderBookStream))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *FiberServer) queryHandler(c *fiber.Ctx) error {
	var req remote.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return writeError(c, fmt.Errorf("%w: malformed request body: %v", resolver.ErrValidation, err))
	}

	op, err := resolver.ParseOperation(req.Operation)
	if err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.exec.Execute(ctx, op, req.Variables)
	if err != nil {
		s.logger.Info("Server | query failed", zap.Stringer("operation", op), zap.Error(err))
		return writeError(c, err)
	}
	return c.JSON(remote.Response{Data: &res})
}

func writeError(c *fiber.Ctx, err error) error {
	payload := remote.NewErrorPayload(err)
	return c.Status(statusFor(payload.Kind)).JSON(remote.Response{Errors: []remote.ErrorPayload{payload}})
}

func statusFor(kind resolver.ErrorKind) int {
	switch kind {
	case resolver.KindValidation, resolver.KindUnknown:
		return fiber.StatusBadRequest
	case resolver.KindFailure:
		return fiber.StatusServiceUnavailable
	case resolver.KindCanceled:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *FiberServer) tradingPairsStream(conn *websocket.Conn) {
	q := query.NewTradingPairs(s.client, query.WithInterval(s.cfg.TradingPairsInterval))
	serveStream(conn, q.Query, s.logger.With(zap.String("stream", "pairs")))
}

func (s *FiberServer) orderBookStream(conn *websocket.Conn) {
	symbol := conn.Params("symbol")
	q := query.NewOrderBook(s.client, symbol, query.WithInterval(s.cfg.OrderBookInterval))
	if !q.Enabled() {
		_ = conn.WriteJSON(remote.Response{Errors: []remote.ErrorPayload{{Message: "symbol is required", Kind: resolver.KindValidation}}})
		return
	}
	serveStream(conn, q.Query, s.logger.With(zap.String("stream", "orderbook"), zap.String("symbol", symbol)))
}

// serveStream polls q for as long as the peer stays connected.
func serveStream[T any](conn *websocket.Conn, q *query.Query[T], logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sub := q.Subscribe()
	q.Start(ctx)
	defer func() {
		q.Stop()
		q.Unsubscribe(sub)
	}()

	logger.Info("Server | stream opened")
	err := pump(ctx, sub, conn.WriteJSON)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Info("Server | stream closed", zap.Error(err))
		return
	}
	logger.Info("Server | stream closed")
}

// pump forwards snapshots to write until ctx ends or a write fails.
func pump[T any](ctx context.Context, sub <-chan query.State[T], write func(any) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-sub:
			if !ok {
				return nil
			}
			if err := write(NewSnapshot(st)); err != nil {
				return err
			}
		}
	}
}
