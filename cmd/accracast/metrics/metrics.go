// Package metrics provides Prometheus instrumentation for the accracast
// service.
//
// Metrics exposed:
//   - accracast_train_seconds: Histogram of full retrain duration
//   - accracast_predict_seconds: Histogram of fresh prediction duration
//   - accracast_cache_hits_total / accracast_cache_misses_total
//   - accracast_model_age_seconds: Gauge of current model set age
//   - accracast_trained_roads: Gauge of roads with a trained model
//   - accracast_errors_total: Counter of errors by component and reason
//
// All metrics are served on the /metrics HTTP endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. It satisfies
// predict.Recorder.
type Metrics struct {
	TrainSeconds     prometheus.Histogram
	PredictSeconds   prometheus.Histogram
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	ModelAgeSeconds  prometheus.Gauge
	TrainedRoads     prometheus.Gauge
	ErrorsTotal      *prometheus.CounterVec
}

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		TrainSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accracast_train_seconds",
			Help:    "Time spent retraining all road models",
			Buckets: prometheus.DefBuckets,
		}),

		PredictSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accracast_predict_seconds",
			Help:    "Time spent computing a fresh prediction (cache misses only)",
			Buckets: prometheus.DefBuckets,
		}),

		CacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accracast_cache_hits_total",
			Help: "Prediction cache hits",
		}),

		CacheMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accracast_cache_misses_total",
			Help: "Prediction cache misses",
		}),

		ModelAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "accracast_model_age_seconds",
			Help: "Age of the current trained model set in seconds",
		}),

		TrainedRoads: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "accracast_trained_roads",
			Help: "Number of roads with a trained model",
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "accracast_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordTrain records the duration of one full retrain.
func (m *Metrics) RecordTrain(seconds float64) {
	m.TrainSeconds.Observe(seconds)
}

// RecordPredict records the duration of one fresh prediction.
func (m *Metrics) RecordPredict(seconds float64) {
	m.PredictSeconds.Observe(seconds)
}

// RecordCacheHit increments the cache hit counter.
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// SetModelAge sets the current model set age.
func (m *Metrics) SetModelAge(seconds float64) {
	m.ModelAgeSeconds.Set(seconds)
}

// SetTrainedRoads sets the trained road count.
func (m *Metrics) SetTrainedRoads(n int) {
	m.TrainedRoads.Set(float64(n))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
