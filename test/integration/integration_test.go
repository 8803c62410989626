//go:build integration

// Package integration exercises the full prediction pipeline end to end:
// CSV tables on disk, training, a live HTTP server, and a real Redis
// cache running in a container.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/kofiasante/accracast/pkg/dataset"
	"github.com/kofiasante/accracast/pkg/features"
	"github.com/kofiasante/accracast/pkg/httpx"
	"github.com/kofiasante/accracast/pkg/predict"
	"github.com/kofiasante/accracast/pkg/registry"
	"github.com/kofiasante/accracast/pkg/storage"
)

const (
	trafficCSV = `road,timestamp,avg_speed
Circle Rd,2026-03-02 07:00:00,15.0
Circle Rd,2026-03-02 08:00:00,12.5
Circle Rd,2026-03-02 09:00:00,14.0
Circle Rd,2026-03-02 10:00:00,28.0
Circle Rd,2026-03-02 11:00:00,30.0
Spintex Rd,2026-03-02 07:00:00,25.0
Spintex Rd,2026-03-02 08:00:00,22.0
Spintex Rd,2026-03-02 09:00:00,24.0
Spintex Rd,2026-03-02 10:00:00,40.0
Spintex Rd,2026-03-02 11:00:00,42.0
`
	weatherCSV = `timestamp,rain,temp,humidity
2026-03-02 07:00:00,0.0,26.0,70
2026-03-02 08:00:00,0.0,27.0,68
2026-03-02 09:00:00,2.8,27.5,75
2026-03-02 10:00:00,0.0,29.0,66
2026-03-02 11:00:00,0.0,30.0,60
`
	eventsCSV = `timestamp,event_type
2026-03-02 09:00:00,accident
`
)

func startRedis(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	return strings.TrimPrefix(endpoint, "redis://")
}

func writeDataset(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range map[string]string{
		dataset.TrafficFile: trafficCSV,
		dataset.WeatherFile: weatherCSV,
		dataset.EventsFile:  eventsCSV,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestPredictionPipelineE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Train from CSV tables the way the service does at startup.
	tables, err := dataset.Load(writeDataset(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := tables.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	obs, err := tables.Merge()
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	builder := features.NewBuilder()
	frames, err := builder.Build(obs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reg := registry.New()
	if err := reg.TrainAll(ctx, frames, registry.Options{}); err != nil {
		t.Fatalf("TrainAll: %v", err)
	}

	// Shared cache backed by a real Redis.
	cache, err := storage.NewRedisCache(startRedis(t), "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer cache.Close()

	store := dataset.NewStore(obs)
	svc := predict.NewService(reg, builder, cache, store, logger, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/eta", func(w http.ResponseWriter, r *http.Request) {
		road := r.URL.Query().Get("road")
		p, err := svc.PredictRouteETA(r.Context(), road, 10, features.Conditions{
			Hour: 8, Weekday: 1, RainMm: 0, TempC: 28, Humidity: 65, EventType: "none",
		})
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, p)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))
	server := httpx.NewServer(addr, mux, logger)
	go server.Start()
	defer server.Stop(5 * time.Second)

	baseURL := "http://" + addr

	// Wait for the server to come up.
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not start in time")
		}
		time.Sleep(50 * time.Millisecond)
	}

	fetch := func(road string) storage.Prediction {
		t.Helper()

		resp, err := http.Get(baseURL + "/eta?road=" + url.QueryEscape(road))
		if err != nil {
			t.Fatalf("GET /eta: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}

		var p storage.Prediction
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return p
	}

	first := fetch("Circle Rd")
	if first.Road != "Circle Rd" || first.SpeedKmh <= 0 || first.EtaMinutes <= 0 {
		t.Fatalf("implausible prediction: %+v", first)
	}
	if first.EtaLowMinutes > first.EtaHighMinutes {
		t.Fatalf("ETA interval not ordered: %+v", first)
	}

	// The second identical request is served from Redis and must match
	// the first byte for byte.
	second := fetch("Circle Rd")
	if !second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Errorf("cached GeneratedAt differs: %v vs %v", second.GeneratedAt, first.GeneratedAt)
	}
	second.GeneratedAt = first.GeneratedAt
	if second != first {
		t.Errorf("cached result differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}

	// The two roads are distinct models.
	spintex := fetch("Spintex Rd")
	if spintex.SpeedKmh == first.SpeedKmh {
		t.Errorf("distinct roads returned identical speeds: %v", spintex.SpeedKmh)
	}
}
