// Package storage provides prediction cache implementations.
//
// A cache entry memoizes one PredictionService output under a canonical
// request key, so repeated identical queries skip feature building and
// model inference entirely. Cached results are exactly what a fresh
// computation would produce; the cache only trades CPU for memory.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kofiasante/accracast/pkg/features"
)

// Prediction is a finished ETA estimate. Immutable once computed.
type Prediction struct {
	Road       string    `json:"road"`
	DistanceKm float64   `json:"distanceKm"`
	SpeedKmh   float64   `json:"speedKmh"`
	EtaMinutes float64   `json:"etaMinutes"`

	// EtaLowMinutes and EtaHighMinutes form the confidence interval on
	// the ETA, derived from the speed confidence bounds.
	EtaLowMinutes  float64 `json:"etaLowMinutes"`
	EtaHighMinutes float64 `json:"etaHighMinutes"`

	// SpeedClamped marks predictions whose raw speed fell below the
	// 1 km/h floor and was clamped. Diagnostic, not an error.
	SpeedClamped bool `json:"speedClamped,omitempty"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// Key builds the canonical cache key for a request. Field order is
// fixed and floats are rounded to fixed precision, so two logically
// identical requests always map to the same key regardless of how the
// caller supplied them.
func Key(road string, distanceKm float64, c features.Conditions) string {
	return fmt.Sprintf("%s|d=%.2f|h=%d|w=%d|rain=%.2f|temp=%.1f|hum=%d|event=%s",
		road, distanceKm, c.Hour, c.Weekday, c.RainMm, c.TempC, c.Humidity, c.EventType)
}

// Cache stores predictions by canonical key.
type Cache interface {
	Get(ctx context.Context, key string) (Prediction, bool, error)
	Put(ctx context.Context, key string, p Prediction) error
}
