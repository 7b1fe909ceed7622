// Package main is the entrypoint for the SatWatch order worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/satwatch-io/satwatch/internal/broker"
	"github.com/satwatch-io/satwatch/internal/config"
	"github.com/satwatch-io/satwatch/internal/provider"
	"github.com/satwatch-io/satwatch/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "providers", cfg.Providers.Enabled, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := broker.Connect(cfg.AMQP.URL, cfg.AMQP.Prefetch)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer b.Close()
	slog.Info("broker connected")

	providers, err := provider.NewRegistry(cfg.Providers, cfg.Worker)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	orch := worker.NewOrchestrator(providers, b, cfg.Worker.StartupDelay)
	consumer := worker.NewConsumer(b, orch)

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consumer: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}
