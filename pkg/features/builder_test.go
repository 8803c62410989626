package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kofiasante/accracast/pkg/dataset"
)

func obsAt(road string, ts time.Time, speed float64) dataset.Observation {
	return dataset.Observation{
		Road:      road,
		Timestamp: ts,
		SpeedKmh:  speed,
		RainMm:    0,
		TempC:     28,
		Humidity:  65,
		EventType: dataset.EventNone,
	}
}

func TestBuilder_Build_PerRoadFrames(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	obs := []dataset.Observation{
		obsAt("Circle Rd", base, 30),
		obsAt("Circle Rd", base.Add(time.Hour), 40),
		obsAt("Spintex Rd", base, 50),
	}

	frames, err := NewBuilder().Build(obs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	circle := frames["Circle Rd"]
	if circle == nil {
		t.Fatal("missing frame for Circle Rd")
	}
	if len(circle.Rows) != 2 || len(circle.Targets) != 2 {
		t.Fatalf("Circle Rd frame has %d rows, %d targets, want 2, 2", len(circle.Rows), len(circle.Targets))
	}
	if circle.MeanSpeed != 35 {
		t.Errorf("Circle Rd mean speed = %v, want 35", circle.MeanSpeed)
	}
	if !circle.Schema.Equal(Columns()) {
		t.Error("frame schema differs from canonical schema")
	}
	if len(circle.Rows[0]) != len(Columns()) {
		t.Errorf("row width = %d, want %d", len(circle.Rows[0]), len(Columns()))
	}
}

func TestBuilder_Build_SortsByTimestamp(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	// Out of order on purpose: targets must come back time-sorted.
	obs := []dataset.Observation{
		obsAt("Circle Rd", base.Add(2*time.Hour), 20),
		obsAt("Circle Rd", base, 40),
		obsAt("Circle Rd", base.Add(time.Hour), 30),
	}

	frames, err := NewBuilder().Build(obs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got := frames["Circle Rd"].Targets
	want := []float64{40, 30, 20}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets = %v, want %v", got, want)
		}
	}
}

func TestBuilder_Build_LagBoundaryFill(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	obs := []dataset.Observation{
		obsAt("Circle Rd", base, 30),
		obsAt("Circle Rd", base.Add(time.Hour), 40),
		obsAt("Circle Rd", base.Add(2*time.Hour), 50),
	}

	frames, err := NewBuilder().Build(obs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	rows := frames["Circle Rd"].Rows
	lagIdx := len(Columns()) - 3
	meanIdx := len(Columns()) - 2
	stdIdx := len(Columns()) - 1

	// First row has no history: lag and rolling mean fall back to the
	// road mean (40), rolling std to zero.
	if rows[0][lagIdx] != 40 || rows[0][meanIdx] != 40 || rows[0][stdIdx] != 0 {
		t.Errorf("first row history = (%v, %v, %v), want (40, 40, 0)",
			rows[0][lagIdx], rows[0][meanIdx], rows[0][stdIdx])
	}

	// Second row sees only the first speed.
	if rows[1][lagIdx] != 30 || rows[1][meanIdx] != 30 || rows[1][stdIdx] != 0 {
		t.Errorf("second row history = (%v, %v, %v), want (30, 30, 0)",
			rows[1][lagIdx], rows[1][meanIdx], rows[1][stdIdx])
	}

	// Third row sees speeds 30 and 40.
	if rows[2][lagIdx] != 40 || rows[2][meanIdx] != 35 {
		t.Errorf("third row lag/mean = (%v, %v), want (40, 35)", rows[2][lagIdx], rows[2][meanIdx])
	}
	wantStd := math.Sqrt(50) // sample std of {30, 40}
	if math.Abs(rows[2][stdIdx]-wantStd) > 1e-9 {
		t.Errorf("third row std = %v, want %v", rows[2][stdIdx], wantStd)
	}
}

func TestBuilder_Build_UnknownRoad(t *testing.T) {
	obs := []dataset.Observation{
		obsAt("Ring Rd", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), 30),
	}

	_, err := NewBuilder().Build(obs)
	if err == nil {
		t.Fatal("expected error for unknown road")
	}
	var roadErr *dataset.UnknownRoadError
	if !errors.As(err, &roadErr) {
		t.Fatalf("expected UnknownRoadError, got %T", err)
	}
}

func TestBuilder_Build_UnknownEvent(t *testing.T) {
	o := obsAt("Circle Rd", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), 30)
	o.EventType = "parade"

	_, err := NewBuilder().Build([]dataset.Observation{o})
	if err == nil {
		t.Fatal("expected error for unknown event")
	}
	var eventErr *UnknownEventTypeError
	if !errors.As(err, &eventErr) {
		t.Fatalf("expected UnknownEventTypeError, got %T", err)
	}
}

func TestBuilder_BuildQuery(t *testing.T) {
	cond := Conditions{
		Hour:      17,
		Weekday:   1,
		RainMm:    3.0,
		TempC:     31,
		Humidity:  80,
		EventType: "concert",
	}

	vec, err := NewBuilder().BuildQuery(cond, []float64{30, 35, 40}, 33)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !vec.Schema.Equal(Columns()) {
		t.Error("query schema differs from canonical schema")
	}
	if len(vec.Values) != len(Columns()) {
		t.Fatalf("query width = %d, want %d", len(vec.Values), len(Columns()))
	}

	// Spot-check the derived columns by name.
	idx := func(name string) int {
		for i, c := range Columns() {
			if c == name {
				return i
			}
		}
		t.Fatalf("column %q not in schema", name)
		return -1
	}

	if vec.Values[idx("is_rush_hour")] != 1 {
		t.Error("hour 17 should be rush hour")
	}
	if vec.Values[idx("is_weekend")] != 0 {
		t.Error("weekday 1 should not be weekend")
	}
	if vec.Values[idx("rain_level")] != 2 {
		t.Errorf("rain_level = %v, want 2", vec.Values[idx("rain_level")])
	}
	if vec.Values[idx("temp_level")] != 3 {
		t.Errorf("temp_level = %v, want 3", vec.Values[idx("temp_level")])
	}
	if vec.Values[idx("humidity_level")] != 2 {
		t.Errorf("humidity_level = %v, want 2", vec.Values[idx("humidity_level")])
	}
	if vec.Values[idx("event_concert")] != 1 {
		t.Error("event_concert should be 1")
	}
	if vec.Values[idx("lag_speed")] != 40 {
		t.Errorf("lag_speed = %v, want 40", vec.Values[idx("lag_speed")])
	}
	if vec.Values[idx("rolling_mean")] != 35 {
		t.Errorf("rolling_mean = %v, want 35", vec.Values[idx("rolling_mean")])
	}
}

func TestBuilder_BuildQuery_NoHistory(t *testing.T) {
	cond := Conditions{Hour: 3, Weekday: 0, TempC: 26, Humidity: 50, EventType: "none"}

	vec, err := NewBuilder().BuildQuery(cond, nil, 42)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}

	n := len(vec.Values)
	if vec.Values[n-3] != 42 || vec.Values[n-2] != 42 || vec.Values[n-1] != 0 {
		t.Errorf("fallback history = (%v, %v, %v), want (42, 42, 0)",
			vec.Values[n-3], vec.Values[n-2], vec.Values[n-1])
	}
}

func TestConditions_Validate(t *testing.T) {
	valid := Conditions{Hour: 8, Weekday: 2, RainMm: 1, TempC: 28, Humidity: 60, EventType: "none"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid conditions rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Conditions)
		field  string
	}{
		{"hour too high", func(c *Conditions) { c.Hour = 24 }, "hour"},
		{"hour negative", func(c *Conditions) { c.Hour = -1 }, "hour"},
		{"weekday too high", func(c *Conditions) { c.Weekday = 7 }, "weekday"},
		{"rain negative", func(c *Conditions) { c.RainMm = -0.5 }, "rain"},
		{"temp too low", func(c *Conditions) { c.TempC = -25 }, "temperature"},
		{"temp too high", func(c *Conditions) { c.TempC = 61 }, "temperature"},
		{"humidity too high", func(c *Conditions) { c.Humidity = 101 }, "humidity"},
		{"missing event", func(c *Conditions) { c.EventType = "" }, "event_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var condErr *InvalidConditionsError
			if !errors.As(err, &condErr) {
				t.Fatalf("expected InvalidConditionsError, got %T", err)
			}
			if condErr.Field != tt.field {
				t.Errorf("field = %q, want %q", condErr.Field, tt.field)
			}
		})
	}
}
