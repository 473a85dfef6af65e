// Command rekindle-worker drains interaction events from RabbitMQ into
// Postgres for classroom deployments. It is configured entirely through
// environment variables so it can run as a sidecar next to the daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/rekindle/internal/config"
	"github.com/felixgeelhaar/rekindle/internal/queue"
	"github.com/felixgeelhaar/rekindle/internal/repository"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	interactions := repository.NewInteractionRepository(db)

	conn, err := queue.NewConnection(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("connect to queue: %w", err)
	}
	defer conn.Close()

	handler := func(ctx context.Context, event *queue.InteractionEvent) error {
		return interactions.Publish(ctx, event.Record)
	}

	consumer := queue.NewConsumer(conn, handler, queue.ConsumerConfig{
		Workers:  cfg.ConsumerWorkers,
		Prefetch: cfg.ConsumerPrefetch,
	})
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	slog.Info("worker started",
		"workers", cfg.ConsumerWorkers,
		"prefetch", cfg.ConsumerPrefetch,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("received signal, shutting down", "signal", sig.String())
	consumer.Stop()
	slog.Info("worker stopped")
	return nil
}
