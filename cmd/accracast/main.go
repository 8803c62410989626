// Command accracast serves per-road traffic speed predictions and ETAs
// for Accra.
//
// At startup the service:
//  1. Loads and validates the traffic, weather, and events CSV tables
//  2. Merges them into per-road observations (optionally archived to SQLite)
//  3. Trains one gradient boosted model per road
//  4. Serves ETA queries over HTTP, with results cached in memory or Redis
//
// The HTTP API provides:
//   - GET /eta?road=...&distance_km=...&hour=...&weekday=...&rain=...&temp=...&humidity=...&event=...
//   - GET /eta/compare?roads=a,b,c&... - rank roads by ETA
//   - GET /eta/departure?from_hour=...&to_hour=...&... - best departure hour
//   - GET /healthz - health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	accracast \
//	  -data-dir=./data \
//	  -cache=redis -redis-addr=localhost:6379 \
//	  -retrain-interval=1h
//
// Environment variables:
//
//	DATA_DIR         - Directory with the three CSV tables (required)
//	ARCHIVE_PATH     - SQLite observation archive path
//	CACHE            - Cache backend: memory, redis (default: memory)
//	CACHE_TTL        - Cache entry TTL
//	REDIS_ADDR       - Redis server address
//	FEED_URL         - Live speed feed URL template
//	FEED_SPEED_PATH  - gjson path to speeds in the feed response
//	RETRAIN_INTERVAL - Periodic retrain interval (0 trains once)
//	LISTEN           - HTTP listen address (default: :8080)
//	LOG_LEVEL        - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT       - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kofiasante/accracast/cmd/accracast/config"
	"github.com/kofiasante/accracast/cmd/accracast/logger"
	"github.com/kofiasante/accracast/cmd/accracast/metrics"
	"github.com/kofiasante/accracast/cmd/accracast/router"
	"github.com/kofiasante/accracast/pkg/dataset"
	"github.com/kofiasante/accracast/pkg/features"
	"github.com/kofiasante/accracast/pkg/gbm"
	"github.com/kofiasante/accracast/pkg/httpx"
	"github.com/kofiasante/accracast/pkg/predict"
	"github.com/kofiasante/accracast/pkg/registry"
	"github.com/kofiasante/accracast/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting accracast",
		"version", version,
		"data_dir", cfg.DataDir,
		"cache", cfg.Cache,
	)

	var archive *dataset.Archive
	if cfg.ArchivePath != "" {
		var err error
		archive, err = dataset.OpenArchive(cfg.ArchivePath)
		if err != nil {
			logger.Error("failed to open archive", "path", cfg.ArchivePath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Error("failed to close archive", "error", err)
			}
		}()
	}

	cache, err := newCache(cfg, logger)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}
	if closer, ok := cache.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close cache", "error", err)
			}
		}()
	}

	builder := features.NewBuilder()
	reg := registry.New()
	m := metrics.New()

	trainer := NewTrainer(cfg.DataDir, archive, builder, reg, registry.Options{
		GBM: gbm.Options{
			Trees:        cfg.Trees,
			MaxDepth:     cfg.MaxDepth,
			LearningRate: cfg.LearningRate,
		},
		HoldoutFraction: cfg.HoldoutFraction,
	}, logger, m)

	var history predict.History = trainer
	if cfg.FeedURL != "" {
		history = &dataset.SpeedFeed{
			URL:       cfg.FeedURL,
			SpeedPath: cfg.FeedSpeedPath,
		}
		logger.Info("using live speed feed", "url", cfg.FeedURL)
	}

	svc := predict.NewService(reg, builder, cache, history, logger, m)

	mux := router.SetupRoutes(svc, reg, logger)
	handler := httpx.RequestLogger(logger)(httpx.Recoverer(logger)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := trainer.Train(ctx); err != nil {
		logger.Error("initial training failed", "error", err)
		os.Exit(1)
	}

	if cfg.RetrainInterval > 0 {
		go func() {
			if err := trainer.Run(ctx, cfg.RetrainInterval); err != nil && err != context.Canceled {
				logger.Error("retrain loop failed", "error", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// newCache builds the configured cache backend.
func newCache(cfg *config.Config, logger *slog.Logger) (storage.Cache, error) {
	switch cfg.Cache {
	case "redis":
		logger.Info("using redis cache", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return storage.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	default:
		if cfg.CacheTTL > 0 {
			logger.Info("using memory cache", "ttl", cfg.CacheTTL)
			return storage.NewMemoryCacheWithTTL(cfg.CacheTTL, 0), nil
		}
		logger.Info("using memory cache")
		return storage.NewMemoryCache(), nil
	}
}
