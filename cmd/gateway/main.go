// Package main is the entrypoint for the SatWatch API gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satwatch-io/satwatch/internal/api"
	"github.com/satwatch-io/satwatch/internal/api/handler"
	mw "github.com/satwatch-io/satwatch/internal/api/middleware"
	"github.com/satwatch-io/satwatch/internal/api/response"
	"github.com/satwatch-io/satwatch/internal/broker"
	"github.com/satwatch-io/satwatch/internal/cache"
	"github.com/satwatch-io/satwatch/internal/config"
	"github.com/satwatch-io/satwatch/internal/relay"
	"github.com/satwatch-io/satwatch/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateGateway(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := broker.Connect(cfg.AMQP.URL, cfg.AMQP.Prefetch)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer b.Close()
	slog.Info("broker connected")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	store := storage.NewHTTPClient(cfg.Storage.BaseURL, cfg.Storage.Timeout)
	bridge := relay.NewBridge(b)

	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimit),

		HealthHandler:      healthHandler(b, redisCache, store),
		CreateOrderHandler: handler.NewCreateOrderHandler(store, b),
		OrderEventsHandler: handler.NewOrderEventsHandler(bridge, cfg.Server.SSEHeartbeat),
	}

	router := api.NewRouter(deps)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the event stream stays open for minutes.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("gateway stopped gracefully")
	return nil
}

// healthHandler checks broker, redis and storage connectivity.
func healthHandler(b *broker.Broker, c cache.Cache, s storage.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"broker":  "ok",
			"cache":   "ok",
			"storage": "ok",
		}

		if err := b.Ping(); err != nil {
			checks["broker"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := s.Ping(r.Context()); err != nil {
			checks["storage"] = "degraded"
		}

		for _, v := range checks {
			if v != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
