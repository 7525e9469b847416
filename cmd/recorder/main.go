// recorder subscribes to a ledger stream and archives events to Postgres.
// Usage: go run ./cmd/recorder --config configs/client.example.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ledgerlink/internal/backoff"
	"github.com/rickgao/ledgerlink/internal/client"
	"github.com/rickgao/ledgerlink/internal/config"
	"github.com/rickgao/ledgerlink/internal/journal"
	"github.com/rickgao/ledgerlink/internal/metrics"
	"github.com/rickgao/ledgerlink/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/client.example.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("starting recorder", "version", version.String())

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateDatabase(); err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("recorder failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := journal.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	m := metrics.New()

	c, err := client.New(client.Options{
		URL:            cfg.Client.URL,
		RequestTimeout: cfg.Client.RequestTimeout,
		Backoff: backoff.Policy{
			InitialDelay: cfg.Client.Backoff.InitialDelay,
			MaxDelay:     cfg.Client.Backoff.MaxDelay,
		},
		Logger:  logger.With("component", "client"),
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Disconnect(0, "recorder shutdown")

	writer := journal.NewWriter(journal.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
	}, pool, logger.With("component", "journal"))
	if err := writer.Start(ctx); err != nil {
		return fmt.Errorf("start writer: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		writer.Stop(stopCtx)
	}()

	remove := c.ListenType(cfg.Recorder.Stream, writer.Record)
	defer remove()

	// Ask the server to start pushing the stream. Subscriptions do not
	// survive a reconnect; re-issue on every open.
	subscribe := func() error {
		_, err := c.Request(ctx, "subscribe", map[string]any{
			"streams": []string{"ledger"},
		})
		return err
	}
	if err := subscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.OnReconnect(func() {
		if err := subscribe(); err != nil {
			logger.Warn("re-subscribe after reconnect failed", "error", err)
		}
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, m.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("metrics listening", "addr", srv.Addr, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		return srv.Shutdown(shutCtx)
	})

	logger.Info("recorder started", "stream", cfg.Recorder.Stream, "url", cfg.Client.URL)
	return g.Wait()
}
