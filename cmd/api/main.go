// Package main is the entry point for the SkyCast API server.
//
// It loads configuration, connects the database pool, wires the external
// clients and the resolution pipeline, builds the HTTP server with the core
// chassis (middleware, routing, health checks), and starts listening for
// requests. Graceful shutdown is handled via OS signal interception
// (SIGINT, SIGTERM).
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

	"github.com/go-chi/chi/v5"

	"skycast/internal/api/handlers"
	"skycast/internal/config"
	"skycast/internal/core"
	"skycast/internal/db"
	"skycast/internal/external"
	"skycast/internal/scheduler"
	"skycast/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("skycast API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	// Database pool. Startup fails fast when the database is unreachable.
	poolCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(poolCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	locations := db.NewLocationRepository(pool)
	observations := db.NewObservationRepository(pool)
	predictions := db.NewPredictionRepository(pool)

	// External clients.
	weatherClient := external.NewWeatherClient(external.WeatherClientConfig{
		APIKey:       cfg.Upstream.APIKey,
		BaseURL:      cfg.Upstream.BaseURL,
		Timeout:      cfg.Upstream.Timeout,
		ForecastDays: cfg.Upstream.ForecastDays,
		Logger:       logger,
	})
	modelClient := external.NewModelClient(external.ModelClientConfig{
		BaseURL:      cfg.Model.BaseURL,
		ProbeTimeout: cfg.Model.ProbeTimeout,
		CallTimeout:  cfg.Model.CallTimeout,
		Logger:       logger,
	})

	// Resolution pipeline: model-backed prediction with a heuristic fallback.
	engine := weather.NewEngine(
		weather.NewModelStrategy(modelClient, logger),
		weather.NewHeuristicStrategy(),
		predictions,
		nil,
		logger,
	)
	service := weather.NewService(
		locations,
		observations,
		predictions,
		weatherClient,
		engine,
		logger,
		weather.WithHistoryLimit(cfg.Model.HistoryLimit),
		weather.WithForecastDays(cfg.Upstream.ForecastDays),
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	weatherHandler := handlers.NewWeatherHandler(service, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		weatherHandler.RegisterRoutes(r)
	})

	srv.HealthProbes = append(srv.HealthProbes,
		core.NewProbe("database", pool.Ping),
		core.NewProbe("model", func(ctx context.Context) error {
			if !modelClient.Healthy(ctx) {
				return fmt.Errorf("model service unreachable")
			}
			return nil
		}),
	)

	// Background refresh keeps observation history warm for the degraded
	// serving path.
	if cfg.Scheduler.Enabled {
		refresher := scheduler.New(service, cfg.Scheduler.Interval, cfg.Scheduler.Concurrency, logger)
		if err := refresher.Start(); err != nil {
			return fmt.Errorf("starting refresh scheduler: %w", err)
		}
		srv.OnShutdown = append(srv.OnShutdown, func(context.Context) error {
			refresher.Stop()
			return nil
		})
	}

	srv.OnShutdown = append(srv.OnShutdown, func(context.Context) error {
		pool.Close()
		return nil
	})

	// Mount all routes (middleware chain + versioned endpoints + health).
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Shutdown server resources (scheduler, DB pool).
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
