// Package registry holds one trained speed regressor per road and
// serves predictions with residual-based confidence bounds.
//
// The registry is read-only between retrains. TrainAll builds a complete
// replacement model set off to the side and swaps it in under the write
// lock, so concurrent readers never observe a half-trained registry.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kofiasante/accracast/pkg/features"
	"github.com/kofiasante/accracast/pkg/gbm"
)

// Confidence bound quantiles over held-out residuals. Fixed so retrains
// stay comparable.
const (
	lowQuantile  = 0.10
	highQuantile = 0.90
)

// minHoldout is the smallest holdout size worth computing quantiles on;
// below it, training residuals are used instead.
const minHoldout = 5

// Options controls training.
type Options struct {
	// GBM configures the underlying boosted-tree regressor.
	GBM gbm.Options

	// HoldoutFraction is the trailing share of each road's rows reserved
	// for residual evaluation. Defaults to 0.2.
	HoldoutFraction float64
}

// UntrainedRoadError reports a predict call for a road with no model.
type UntrainedRoadError struct {
	Road string
}

func (e *UntrainedRoadError) Error() string {
	return fmt.Sprintf("no trained model for road %q", e.Road)
}

// SchemaMismatchError reports a feature vector whose schema differs from
// the training-time schema. The regressor itself cannot detect a shifted
// or missing column, so this check is the only line of defense.
type SchemaMismatchError struct {
	Want features.Schema
	Got  features.Schema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: trained on %v, got %v", e.Want, e.Got)
}

// Prediction is a point speed estimate with its confidence bounds, all
// in km/h.
type Prediction struct {
	SpeedKmh float64
	LowKmh   float64
	HighKmh  float64
}

// roadModel pairs a fitted regressor with the statistics derived from
// its evaluation. Replaced wholesale on retrain, never mutated.
type roadModel struct {
	model     *gbm.Model
	residLow  float64 // signed low residual quantile (typically negative)
	residHigh float64
	meanSpeed float64
}

// Registry maps roads to trained models. Safe for concurrent use: reads
// take the read lock, TrainAll swaps the whole map under the write lock.
type Registry struct {
	mu        sync.RWMutex
	schema    features.Schema
	models    map[string]*roadModel
	trainedAt time.Time
}

// New creates an empty registry. Predictions fail with
// UntrainedRoadError until TrainAll succeeds.
func New() *Registry {
	return &Registry{}
}

// TrainAll fits one model per road from the given frames and atomically
// replaces the current model set. On error nothing is replaced and the
// previous models keep serving.
func (r *Registry) TrainAll(ctx context.Context, frames map[string]*features.Frame, opts Options) error {
	if len(frames) == 0 {
		return fmt.Errorf("no training frames")
	}
	if opts.HoldoutFraction <= 0 || opts.HoldoutFraction >= 1 {
		opts.HoldoutFraction = 0.2
	}

	var schema features.Schema
	next := make(map[string]*roadModel, len(frames))

	for road, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if schema == nil {
			schema = frame.Schema
		} else if !schema.Equal(frame.Schema) {
			return &SchemaMismatchError{Want: schema, Got: frame.Schema}
		}

		rm, err := trainRoad(frame, opts)
		if err != nil {
			return fmt.Errorf("train %s: %w", road, err)
		}
		next[road] = rm
	}

	r.mu.Lock()
	r.schema = schema
	r.models = next
	r.trainedAt = time.Now()
	r.mu.Unlock()

	return nil
}

// trainRoad fits the evaluation model on the leading split, measures
// residual quantiles on the trailing holdout, then refits on the full
// frame so the served model sees all data.
func trainRoad(frame *features.Frame, opts Options) (*roadModel, error) {
	n := len(frame.Rows)
	if n == 0 {
		return nil, fmt.Errorf("frame has no rows")
	}

	holdout := int(float64(n) * opts.HoldoutFraction)
	residLow, residHigh := 0.0, 0.0

	if n-holdout >= 2 && holdout >= minHoldout {
		evalModel, err := gbm.Fit(frame.Rows[:n-holdout], frame.Targets[:n-holdout], opts.GBM)
		if err != nil {
			return nil, err
		}
		residuals := make([]float64, 0, holdout)
		for i := n - holdout; i < n; i++ {
			pred, err := evalModel.Predict(frame.Rows[i])
			if err != nil {
				return nil, err
			}
			residuals = append(residuals, frame.Targets[i]-pred)
		}
		residLow, residHigh = residualQuantiles(residuals)
	}

	full, err := gbm.Fit(frame.Rows, frame.Targets, opts.GBM)
	if err != nil {
		return nil, err
	}

	if residLow == 0 && residHigh == 0 {
		// Holdout too small: fall back to in-sample residuals.
		residuals := make([]float64, 0, n)
		for i, row := range frame.Rows {
			pred, err := full.Predict(row)
			if err != nil {
				return nil, err
			}
			residuals = append(residuals, frame.Targets[i]-pred)
		}
		residLow, residHigh = residualQuantiles(residuals)
	}

	return &roadModel{
		model:     full,
		residLow:  residLow,
		residHigh: residHigh,
		meanSpeed: frame.MeanSpeed,
	}, nil
}

func residualQuantiles(residuals []float64) (low, high float64) {
	if len(residuals) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(residuals))
	copy(sorted, residuals)
	sort.Float64s(sorted)
	low = stat.Quantile(lowQuantile, stat.Empirical, sorted, nil)
	high = stat.Quantile(highQuantile, stat.Empirical, sorted, nil)
	return low, high
}

// Predict runs the road's model over one feature vector. The vector's
// schema must match the training-time schema exactly.
func (r *Registry) Predict(road string, vec features.Vector) (Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.models == nil {
		return Prediction{}, &UntrainedRoadError{Road: road}
	}
	if !vec.Schema.Equal(r.schema) {
		return Prediction{}, &SchemaMismatchError{Want: r.schema, Got: vec.Schema}
	}

	rm, ok := r.models[road]
	if !ok {
		return Prediction{}, &UntrainedRoadError{Road: road}
	}

	speed, err := rm.model.Predict(vec.Values)
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{
		SpeedKmh: speed,
		LowKmh:   speed + rm.residLow,
		HighKmh:  speed + rm.residHigh,
	}, nil
}

// MeanSpeed returns the training-time mean speed for a road, used as
// the history fallback for lag features.
func (r *Registry) MeanSpeed(road string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.models[road]
	if !ok {
		return 0, &UntrainedRoadError{Road: road}
	}
	return rm.meanSpeed, nil
}

// Roads returns the trained road names in sorted order.
func (r *Registry) Roads() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roads := make([]string, 0, len(r.models))
	for road := range r.models {
		roads = append(roads, road)
	}
	sort.Strings(roads)
	return roads
}

// TrainedAt returns when the current model set was installed, zero if
// never trained.
func (r *Registry) TrainedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trainedAt
}
