// Package router configures the accracast HTTP API.
//
// Routes:
//   - GET /eta        - predict ETA for one road
//   - GET /eta/compare   - rank several roads by ETA for the same trip
//   - GET /eta/departure - find the cheapest departure hour in a range
//   - GET /healthz    - health check (503 until models are trained)
//   - GET /metrics    - Prometheus metrics
//
// Prediction endpoints share the same condition query parameters:
// hour, weekday, rain, temp, humidity, event. All are required; there
// are no implicit defaults.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kofiasante/accracast/pkg/dataset"
	"github.com/kofiasante/accracast/pkg/features"
	"github.com/kofiasante/accracast/pkg/httpx"
	"github.com/kofiasante/accracast/pkg/predict"
	"github.com/kofiasante/accracast/pkg/registry"
)

const requestTimeout = 5 * time.Second

// SetupRoutes wires the API endpoints.
func SetupRoutes(svc *predict.Service, reg *registry.Registry, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler(func() error {
		if reg.TrainedAt().IsZero() {
			return errors.New("models not trained yet")
		}
		return nil
	}))

	mux.HandleFunc("/eta", handleETA(svc, logger))
	mux.HandleFunc("/eta/compare", handleCompare(svc, logger))
	mux.HandleFunc("/eta/departure", handleDeparture(svc, logger))

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func handleETA(svc *predict.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		road := r.URL.Query().Get("road")
		if road == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "road parameter required")
			return
		}

		distance, cond, err := parseRequest(r)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		result, err := svc.PredictRouteETA(ctx, road, distance, cond)
		if err != nil {
			writePredictionError(w, logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handleCompare(svc *predict.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roadsParam := r.URL.Query().Get("roads")
		if roadsParam == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "roads parameter required (comma-separated)")
			return
		}
		roads := strings.Split(roadsParam, ",")

		distance, cond, err := parseRequest(r)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		results, err := svc.CompareRoutes(ctx, roads, distance, cond)
		if err != nil {
			writePredictionError(w, logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, results); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handleDeparture(svc *predict.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		road := r.URL.Query().Get("road")
		if road == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "road parameter required")
			return
		}

		fromHour, err := intParam(r, "from_hour")
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		toHour, err := intParam(r, "to_hour")
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		distance, cond, err := parseRequest(r)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		best, err := svc.BestDepartureTime(ctx, road, distance, cond, fromHour, toHour)
		if err != nil {
			writePredictionError(w, logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, best); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// parseRequest extracts the distance and the full conditions set from
// query parameters. The departure endpoint overrides hour itself but
// still requires one, keeping the parameter contract uniform.
func parseRequest(r *http.Request) (float64, features.Conditions, error) {
	distance, err := floatParam(r, "distance_km")
	if err != nil {
		return 0, features.Conditions{}, err
	}

	hour, err := intParam(r, "hour")
	if err != nil {
		return 0, features.Conditions{}, err
	}
	weekday, err := intParam(r, "weekday")
	if err != nil {
		return 0, features.Conditions{}, err
	}
	rain, err := floatParam(r, "rain")
	if err != nil {
		return 0, features.Conditions{}, err
	}
	temp, err := floatParam(r, "temp")
	if err != nil {
		return 0, features.Conditions{}, err
	}
	humidity, err := intParam(r, "humidity")
	if err != nil {
		return 0, features.Conditions{}, err
	}
	event := r.URL.Query().Get("event")
	if event == "" {
		return 0, features.Conditions{}, fmt.Errorf("event parameter required")
	}

	return distance, features.Conditions{
		Hour:      hour,
		Weekday:   weekday,
		RainMm:    rain,
		TempC:     temp,
		Humidity:  humidity,
		EventType: event,
	}, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%s parameter required", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%s parameter required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

// writePredictionError maps service errors onto HTTP statuses: caller
// mistakes are 400, an untrained registry is 503, everything else is a
// 500 with the detail kept server-side.
func writePredictionError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var invalidCond *features.InvalidConditionsError
	var unknownEvent *features.UnknownEventTypeError
	var unknownRoad *dataset.UnknownRoadError
	var untrained *registry.UntrainedRoadError

	switch {
	case errors.As(err, &invalidCond), errors.As(err, &unknownEvent), errors.As(err, &unknownRoad):
		httpx.WriteError(w, http.StatusBadRequest, err)
	case errors.As(err, &untrained):
		httpx.WriteError(w, http.StatusServiceUnavailable, err)
	default:
		logger.Error("prediction failed", "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
