// Package predict turns trained road models into ETA answers.
//
// The service builds exactly one feature vector per request, runs the
// road's model, converts the predicted speed into minutes over the
// requested distance, and memoizes the finished result. A cache hit
// bypasses feature building and inference entirely and returns exactly
// what the fresh computation produced.
package predict

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kofiasante/accracast/pkg/dataset"
	"github.com/kofiasante/accracast/pkg/features"
	"github.com/kofiasante/accracast/pkg/registry"
	"github.com/kofiasante/accracast/pkg/storage"
)

// minSpeedKmh floors pathological predictions so the ETA division can't
// blow up. Clamped results carry the SpeedClamped diagnostic.
const minSpeedKmh = 1.0

// historyDepth is how many recent speeds the service requests from the
// history source for lag and rolling context.
const historyDepth = 3

// History supplies recent observed speeds for a road, oldest first.
// Implemented by dataset.Store over loaded data and by dataset.SpeedFeed
// over a live HTTP feed.
type History interface {
	RecentSpeeds(ctx context.Context, road string, n int) ([]float64, error)
}

// Recorder receives service-level measurements. All methods must be safe
// for concurrent use. A nil Recorder disables instrumentation.
type Recorder interface {
	RecordPredict(seconds float64)
	RecordCacheHit()
	RecordCacheMiss()
	RecordError(component, reason string)
}

// Service answers ETA queries against a trained registry.
type Service struct {
	registry *registry.Registry
	builder  *features.Builder
	cache    storage.Cache
	history  History
	logger   *slog.Logger
	recorder Recorder
}

// NewService creates a prediction service. cache is required; history
// and recorder may be nil.
func NewService(reg *registry.Registry, builder *features.Builder, cache storage.Cache,
	history History, logger *slog.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: reg,
		builder:  builder,
		cache:    cache,
		history:  history,
		logger:   logger,
		recorder: recorder,
	}
}

// PredictRouteETA estimates travel time over distanceKm on road under
// the given conditions. On success the result is written to the cache;
// on failure nothing partial is returned.
func (s *Service) PredictRouteETA(ctx context.Context, road string, distanceKm float64, cond features.Conditions) (storage.Prediction, error) {
	if distanceKm <= 0 {
		return storage.Prediction{}, &features.InvalidConditionsError{
			Field: "distanceKm", Reason: fmt.Sprintf("%g must be > 0", distanceKm),
		}
	}
	if err := cond.Validate(); err != nil {
		return storage.Prediction{}, err
	}
	if !dataset.IsKnownRoad(road) {
		return storage.Prediction{}, &dataset.UnknownRoadError{Road: road}
	}

	key := storage.Key(road, distanceKm, cond)
	if cached, found, err := s.cache.Get(ctx, key); err != nil {
		if s.recorder != nil {
			s.recorder.RecordError("cache", "get_failed")
		}
		return storage.Prediction{}, fmt.Errorf("cache get: %w", err)
	} else if found {
		if s.recorder != nil {
			s.recorder.RecordCacheHit()
		}
		return cached, nil
	}
	if s.recorder != nil {
		s.recorder.RecordCacheMiss()
	}

	start := time.Now()

	result, err := s.computeFresh(ctx, road, distanceKm, cond)
	if err != nil {
		if s.recorder != nil {
			s.recorder.RecordError("predict", "compute_failed")
		}
		return storage.Prediction{}, err
	}

	if s.recorder != nil {
		s.recorder.RecordPredict(time.Since(start).Seconds())
	}

	if err := s.cache.Put(ctx, key, result); err != nil {
		// A failed cache write costs recomputation later, not
		// correctness; the result itself is fine.
		s.logger.Warn("cache put failed", "road", road, "error", err)
		if s.recorder != nil {
			s.recorder.RecordError("cache", "put_failed")
		}
	}

	return result, nil
}

// computeFresh builds the feature vector, runs the model, and converts
// speed into minutes.
func (s *Service) computeFresh(ctx context.Context, road string, distanceKm float64, cond features.Conditions) (storage.Prediction, error) {
	meanSpeed, err := s.registry.MeanSpeed(road)
	if err != nil {
		return storage.Prediction{}, err
	}

	var recent []float64
	if s.history != nil {
		recent, err = s.history.RecentSpeeds(ctx, road, historyDepth)
		if err != nil {
			// Recent history only refines lag features; the mean-speed
			// fallback keeps the prediction well defined.
			s.logger.Warn("recent history unavailable, using mean fallback", "road", road, "error", err)
			recent = nil
		}
	}

	vec, err := s.builder.BuildQuery(cond, recent, meanSpeed)
	if err != nil {
		return storage.Prediction{}, err
	}

	pred, err := s.registry.Predict(road, vec)
	if err != nil {
		return storage.Prediction{}, err
	}

	speed, clamped := clampSpeed(pred.SpeedKmh)
	if clamped {
		s.logger.Warn("low predicted speed clamped",
			"road", road,
			"predicted_kmh", pred.SpeedKmh,
			"floor_kmh", minSpeedKmh,
		)
	}
	low, _ := clampSpeed(pred.LowKmh)
	high, _ := clampSpeed(pred.HighKmh)

	// A faster speed bound means a shorter ETA, so the interval flips.
	return storage.Prediction{
		Road:           road,
		DistanceKm:     distanceKm,
		SpeedKmh:       speed,
		EtaMinutes:     etaMinutes(distanceKm, speed),
		EtaLowMinutes:  etaMinutes(distanceKm, high),
		EtaHighMinutes: etaMinutes(distanceKm, low),
		SpeedClamped:   clamped,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

func clampSpeed(kmh float64) (float64, bool) {
	if kmh < minSpeedKmh {
		return minSpeedKmh, true
	}
	return kmh, false
}

func etaMinutes(distanceKm, speedKmh float64) float64 {
	return distanceKm / speedKmh * 60
}

// CompareRoutes predicts the same trip over several roads and returns
// the results sorted ascending by ETA. Ties keep the input order. Any
// single failure fails the whole comparison.
func (s *Service) CompareRoutes(ctx context.Context, roads []string, distanceKm float64, cond features.Conditions) ([]storage.Prediction, error) {
	if len(roads) == 0 {
		return nil, fmt.Errorf("no routes to compare")
	}

	results := make([]storage.Prediction, 0, len(roads))
	for _, road := range roads {
		p, err := s.PredictRouteETA(ctx, road, distanceKm, cond)
		if err != nil {
			return nil, fmt.Errorf("predict %s: %w", road, err)
		}
		results = append(results, p)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].EtaMinutes < results[j].EtaMinutes
	})
	return results, nil
}

// Departure pairs a candidate departure hour with its prediction.
type Departure struct {
	Hour       int                `json:"hour"`
	Prediction storage.Prediction `json:"prediction"`
}

// BestDepartureTime sweeps candidate hours in [fromHour, toHour],
// overriding only the hour of base, and returns the minimum-ETA
// candidate. Ties go to the earliest hour.
func (s *Service) BestDepartureTime(ctx context.Context, road string, distanceKm float64, base features.Conditions, fromHour, toHour int) (Departure, error) {
	if fromHour < 0 || fromHour > 23 {
		return Departure{}, &features.InvalidConditionsError{Field: "fromHour", Reason: fmt.Sprintf("%d outside [0,23]", fromHour)}
	}
	if toHour < 0 || toHour > 23 {
		return Departure{}, &features.InvalidConditionsError{Field: "toHour", Reason: fmt.Sprintf("%d outside [0,23]", toHour)}
	}
	if fromHour > toHour {
		return Departure{}, &features.InvalidConditionsError{Field: "fromHour", Reason: fmt.Sprintf("%d after toHour %d", fromHour, toHour)}
	}

	var best Departure
	haveBest := false

	for hour := fromHour; hour <= toHour; hour++ {
		cond := base
		cond.Hour = hour

		p, err := s.PredictRouteETA(ctx, road, distanceKm, cond)
		if err != nil {
			return Departure{}, fmt.Errorf("predict hour %d: %w", hour, err)
		}

		// Strict less keeps the earliest hour on ties.
		if !haveBest || p.EtaMinutes < best.Prediction.EtaMinutes {
			best = Departure{Hour: hour, Prediction: p}
			haveBest = true
		}
	}

	return best, nil
}
