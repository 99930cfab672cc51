// Command nightwatchd runs the recording HTTP API service: config load,
// database open, event bus, router, and graceful shutdown, in that
// order.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nightwatch-nvr/nightwatch/internal/api"
	"github.com/nightwatch-nvr/nightwatch/internal/config"
	"github.com/nightwatch-nvr/nightwatch/internal/eventbus"
	"github.com/nightwatch-nvr/nightwatch/internal/logging"
	"github.com/nightwatch-nvr/nightwatch/internal/metrics"
	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logBuffer := logging.GetLogBuffer()
	logger := slog.New(logging.NewStreamHandler(logBuffer, os.Stdout, logLevel))
	slog.SetDefault(logger)

	configPath := getEnv("CONFIG_PATH", "/config/config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Watch(logger); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := nvrdb.DefaultConfig(cfg.DatabasePath)
	db, err := nvrdb.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	busCfg := cfg.NATS
	if busCfg.Host == "" {
		busCfg = eventbus.DefaultConfig()
	}
	bus, err := eventbus.Open(busCfg, logger)
	if err != nil {
		logger.Error("failed to start event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	m := metrics.New()
	go serveMetrics(cfg.MetricsListen, m, logger)

	svc := api.NewService(api.Config{
		TimeZoneName:                     cfg.TimeZoneName,
		TrustForwardHeaders:              cfg.TrustForwardHeaders,
		AllowUnauthenticatedPermissions:  cfg.AllowUnauthenticatedPermissions,
		UIDir:                            cfg.UIDir,
	}, db, m, bus, logger)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      svc,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // live streaming responses run indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "address", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
