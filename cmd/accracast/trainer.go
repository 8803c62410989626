// Package main implements the accracast service orchestration.
//
// This file contains the Trainer type which runs the training pipeline:
//
//	load -> validate -> merge -> archive -> buildFeatures -> trainModels
//
// Train() runs the pipeline once; Run() repeats it at a configured
// interval so the models pick up new observations without a restart.
// Each stage is instrumented with Prometheus metrics.
//
// The Trainer also serves as the recent-speed history source for the
// prediction service when no live feed is configured, delegating to the
// observation store built by the most recent training run.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kofiasante/accracast/cmd/accracast/metrics"
	"github.com/kofiasante/accracast/pkg/dataset"
	"github.com/kofiasante/accracast/pkg/features"
	"github.com/kofiasante/accracast/pkg/registry"
)

// Trainer orchestrates the training pipeline: load -> validate -> merge ->
// archive -> build features -> train models.
type Trainer struct {
	dataDir  string
	archive  *dataset.Archive
	builder  *features.Builder
	registry *registry.Registry
	opts     registry.Options
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu    sync.RWMutex
	store *dataset.Store
}

// NewTrainer creates a new Trainer. The archive may be nil, in which
// case training uses only the CSV tables in dataDir.
func NewTrainer(
	dataDir string,
	archive *dataset.Archive,
	builder *features.Builder,
	reg *registry.Registry,
	opts registry.Options,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Trainer{
		dataDir:  dataDir,
		archive:  archive,
		builder:  builder,
		registry: reg,
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}
}

// Run retrains at the given interval. Blocks until context is canceled.
// The caller is expected to run an initial Train first so startup fails
// fast on bad data.
func (t *Trainer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	t.logger.Info("starting retrain loop", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("retrain loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := t.Train(ctx); err != nil {
				t.logger.Error("retrain failed, keeping previous models", "error", err)
			}
			if t.metrics != nil {
				t.metrics.SetModelAge(time.Since(t.registry.TrainedAt()).Seconds())
			}
		}
	}
}

// Train performs one full training cycle.
func (t *Trainer) Train(ctx context.Context) error {
	start := time.Now()
	t.logger.Debug("starting training cycle")

	obs, err := t.loadObservations(ctx)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("dataset", "load_failed")
		}
		return fmt.Errorf("load observations: %w", err)
	}

	frames, err := t.builder.Build(obs)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("features", "build_failed")
		}
		return fmt.Errorf("build features: %w", err)
	}

	if err := t.registry.TrainAll(ctx, frames, t.opts); err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("registry", "train_failed")
		}
		return fmt.Errorf("train models: %w", err)
	}

	t.mu.Lock()
	t.store = dataset.NewStore(obs)
	t.mu.Unlock()

	duration := time.Since(start)
	if t.metrics != nil {
		t.metrics.RecordTrain(duration.Seconds())
		t.metrics.SetTrainedRoads(len(t.registry.Roads()))
		t.metrics.SetModelAge(0)
	}

	t.logger.Info("training cycle complete",
		"roads", len(t.registry.Roads()),
		"observations", len(obs),
		"duration_ms", duration.Milliseconds(),
	)

	return nil
}

// loadObservations reads and validates the CSV tables, merges them into
// observations, and folds in the archive when one is configured. The
// archive is written before it is read back, so the returned set covers
// both the current tables and everything archived by earlier runs.
func (t *Trainer) loadObservations(ctx context.Context) ([]dataset.Observation, error) {
	tables, err := dataset.Load(t.dataDir)
	if err != nil {
		return nil, err
	}

	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if warns := tables.Warnings(); len(warns) > 0 {
		t.logger.Warn("dataset has implausible values", "count", len(warns), "first", warns[0])
	}

	obs, err := tables.Merge()
	if err != nil {
		return nil, err
	}

	t.logger.Debug("merged tables", "observations", len(obs))

	if t.archive == nil {
		return obs, nil
	}

	if err := t.archive.Save(ctx, obs); err != nil {
		return nil, fmt.Errorf("archive save: %w", err)
	}

	all, err := t.archive.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive load: %w", err)
	}

	t.logger.Debug("loaded archive", "observations", len(all))
	return all, nil
}

// RecentSpeeds returns the most recent n speeds for a road from the
// latest training data. Satisfies the prediction service's history
// interface when no live feed is configured.
func (t *Trainer) RecentSpeeds(ctx context.Context, road string, n int) ([]float64, error) {
	t.mu.RLock()
	store := t.store
	t.mu.RUnlock()

	if store == nil {
		return nil, fmt.Errorf("no observations loaded yet")
	}
	return store.RecentSpeeds(ctx, road, n)
}
