package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/amirphl/marketboard/internal/config"
	"github.com/amirphl/marketboard/internal/display"
	"github.com/amirphl/marketboard/internal/query"
	"github.com/amirphl/marketboard/internal/remote"
	"github.com/amirphl/marketboard/internal/resolver"
	"github.com/amirphl/marketboard/internal/server"
	"github.com/amirphl/marketboard/internal/utils"
)

// newExecutor returns the remote client when an endpoint is configured and
// the in-process mock resolver otherwise.
func newExecutor(cfg config.Config) query.Executor {
	if cfg.RemoteMode() {
		return remote.NewClient(cfg.Endpoint, cfg.RequestTimeout)
	}

	opts := []resolver.Option{resolver.WithCacheTTL(cfg.CacheTTL)}
	for op, p := range resolver.DefaultPolicies() {
		opts = append(opts, resolver.WithPolicy(op, p.Scaled(cfg.LatencyScale)))
	}
	return resolver.New(opts...)
}

func gracefulShutdown(fiberServer *server.FiberServer, done chan bool) {
	logger := utils.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Main | shutting down gracefully, press Ctrl+C again to force")

	// in-flight requests get 5 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fiberServer.ShutdownWithContext(ctx); err != nil {
		logger.Error("Main | server forced to shutdown", zap.Error(err))
	}

	logger.Info("Main | server exiting")
	done <- true
}

func runServe(cfg config.Config, exec query.Executor) error {
	srv := server.New(exec, server.Config{
		TradingPairsInterval: cfg.PairsInterval,
		OrderBookInterval:    cfg.OrderBookInterval,
		RequestTimeout:       cfg.RequestTimeout,
	})
	srv.RegisterFiberRoutes()

	done := make(chan bool, 1)
	errCh := make(chan error, 1)
	go func() {
		utils.GetLogger().Info("Main | listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.Listen(cfg.ListenAddr); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	go gracefulShutdown(srv, done)

	select {
	case <-done:
		utils.GetLogger().Info("Main | graceful shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func runWatch(cfg config.Config, exec query.Executor) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := query.NewClient(exec)
	pairs := query.NewTradingPairs(client, query.WithInterval(cfg.PairsInterval))
	book := query.NewOrderBook(client, cfg.Symbol, query.WithInterval(cfg.OrderBookInterval))
	klines := query.NewKlines(client, cfg.Symbol, cfg.Interval, cfg.Limit, query.WithInterval(cfg.KlinesInterval))
	search := query.NewSearch(nil)
	search.SetTerm(cfg.SearchTerm)

	commands := make(chan string)
	go func() {
		defer close(commands)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case commands <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return display.NewDashboard(os.Stdout, pairs, book, klines, search).Run(ctx, commands)
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(2)
	}
	utils.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("Main | starting marketboard",
		zap.String("mode", cfg.Mode),
		zap.Bool("remote", cfg.RemoteMode()),
		zap.String("endpoint", cfg.Endpoint))

	exec := newExecutor(cfg)

	switch cfg.Mode {
	case config.ModeServe:
		err = runServe(cfg, exec)
	case config.ModeWatch:
		err = runWatch(cfg, exec)
	default:
		err = errors.New("unsupported mode: " + cfg.Mode)
	}
	if err != nil {
		logger.Error("Main | exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Main | shutdown complete")
}
