package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/routedb/internal/config"
	"github.com/rickgao/routedb/internal/database"
	"github.com/rickgao/routedb/internal/logging"
	"github.com/rickgao/routedb/internal/metrics"
	"github.com/rickgao/routedb/internal/router"
	"github.com/rickgao/routedb/internal/server"
	"github.com/rickgao/routedb/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/routerd.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger, closer := logging.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("starting routerd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"go_version", version.GoVersion(),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("routerd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("routerd stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open data sources
	logger.Info("opening data sources", "count", len(cfg.DataSources))
	sources, err := database.OpenAll(ctx, cfg.DataSources, logger)
	if err != nil {
		return fmt.Errorf("open data sources: %w", err)
	}
	defer sources.Close()

	// Named routing targets resolve through the process-wide registry.
	if err := sources.Register(); err != nil {
		return fmt.Errorf("register data sources: %w", err)
	}

	collector := metrics.NewCollector(cfg.Metrics.Namespace)

	rt, err := server.BuildRouter(ctx, cfg.Routing, nil,
		router.WithLogger(logger),
		router.WithMetrics(collector),
	)
	if err != nil {
		return err
	}

	srv := server.New(rt, sources, server.BindKeys(cfg.Routing),
		server.WithLogger(logger),
		server.WithMetrics(collector, cfg.Metrics.Path),
	)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			"port", cfg.Server.Port,
			"key_source", cfg.Routing.KeySource,
			"metrics_path", cfg.Metrics.Path,
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down...")

	// Graceful shutdown of http server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
