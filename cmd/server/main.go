package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/config"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/health"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/storage"
)

// @title Machine Health-o-Meter API
// @version 1.0
// @description Scores factory machine health from part readings and keeps per-user history.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	appLogger := monitoring.NewLogger(monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(appLogger.Logger)

	table, err := health.LoadReferenceTable(cfg.ReferenceTable)
	if err != nil {
		slog.Error("Failed to load reference table", "path", cfg.ReferenceTable, "error", err)
		os.Exit(1)
	}

	store, redisClient, err := storage.Open(storage.Options{
		Backend:       cfg.StoreBackend,
		DataDir:       cfg.DataDir,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Retention:     cfg.Retention(),
	})
	if err != nil {
		slog.Error("Failed to open history store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	srv := newServer(cfg, table, store, redisClient, appLogger)
	defer srv.Close()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go srv.degradation.StartHealthChecks(bgCtx)

	// Drop history past the retention window (runs daily)
	if retention := cfg.Retention(); retention > 0 {
		go srv.runRetention(bgCtx, 24*time.Hour, retention)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server",
			"port", cfg.Port,
			"store_backend", cfg.StoreBackend,
			"machine_types", len(table))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		srv.Close()
		os.Exit(1)
	}

	slog.Info("Server exited")
}
