// Package config parses command-line flags and environment variables
// for the accracast service. Flags take precedence over environment
// variables, which take precedence over defaults.
//
// Configuration covers:
//   - Dataset location and optional SQLite archive
//   - Prediction cache backend (memory or redis) and TTL
//   - Optional live speed feed (URL + gjson path)
//   - Model hyperparameters and retrain interval
//   - HTTP listen address and logging
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Listen    string
	LogLevel  string
	LogFormat string

	DataDir     string
	ArchivePath string

	Cache         string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FeedURL       string
	FeedSpeedPath string

	RetrainInterval time.Duration
	Trees           int
	MaxDepth        int
	LearningRate    float64
	HoldoutFraction float64
}

// ParseFlags parses flags with environment fallbacks and validates the
// result, exiting on invalid configuration.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")

	flag.StringVar(&cfg.DataDir, "data-dir", getEnv("DATA_DIR", ""), "Directory containing the three CSV tables (required)")
	flag.StringVar(&cfg.ArchivePath, "archive", getEnv("ARCHIVE_PATH", ""), "SQLite observation archive path (empty disables archiving)")

	flag.StringVar(&cfg.Cache, "cache", getEnv("CACHE", "memory"), "Prediction cache backend: memory or redis")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 0), "Prediction cache TTL (0 = no expiry for memory, 30m default for redis)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")

	flag.StringVar(&cfg.FeedURL, "feed-url", getEnv("FEED_URL", ""), "Live speed feed URL template (empty uses loaded data for history)")
	flag.StringVar(&cfg.FeedSpeedPath, "feed-speed-path", getEnv("FEED_SPEED_PATH", ""), "gjson path to speeds in the feed response")

	flag.DurationVar(&cfg.RetrainInterval, "retrain-interval", getEnvDuration("RETRAIN_INTERVAL", 0), "Periodic retrain interval (0 trains once at startup)")
	flag.IntVar(&cfg.Trees, "trees", getEnvInt("TREES", 60), "Boosting rounds per road model")
	flag.IntVar(&cfg.MaxDepth, "max-depth", getEnvInt("MAX_DEPTH", 3), "Maximum tree depth")
	flag.Float64Var(&cfg.LearningRate, "learning-rate", getEnvFloat("LEARNING_RATE", 0.1), "Boosting learning rate")
	flag.Float64Var(&cfg.HoldoutFraction, "holdout", getEnvFloat("HOLDOUT_FRACTION", 0.2), "Trailing fraction held out for residual evaluation")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("--data-dir is required")
	}
	if c.Cache != "memory" && c.Cache != "redis" {
		return fmt.Errorf("invalid cache backend %q (must be memory or redis)", c.Cache)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL cannot be negative")
	}
	if (c.FeedURL == "") != (c.FeedSpeedPath == "") {
		return fmt.Errorf("--feed-url and --feed-speed-path must be set together")
	}
	if c.Trees <= 0 {
		return fmt.Errorf("trees must be > 0")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be > 0")
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1]")
	}
	if c.HoldoutFraction <= 0 || c.HoldoutFraction >= 1 {
		return fmt.Errorf("holdout fraction must be in (0, 1)")
	}
	if c.RetrainInterval < 0 {
		return fmt.Errorf("retrain interval cannot be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
