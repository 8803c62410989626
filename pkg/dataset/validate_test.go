package dataset

import (
	"strings"
	"testing"
	"time"
)

func validTables() *Tables {
	ts0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ts1 := ts0.Add(time.Hour)
	return &Tables{
		Traffic: []TrafficRow{
			{Road: "Circle Rd", Timestamp: ts0, SpeedKmh: 22.5},
			{Road: "Circle Rd", Timestamp: ts1, SpeedKmh: 18.0},
			{Road: "Spintex Rd", Timestamp: ts0, SpeedKmh: 35.0},
		},
		Weather: []WeatherRow{
			{Timestamp: ts0, RainMm: 0, TempC: 28.5, Humidity: 65},
			{Timestamp: ts1, RainMm: 4.2, TempC: 27.0, Humidity: 80},
		},
		Events: []EventRow{
			{Timestamp: ts1, EventType: "market_day"},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validTables().Validate(); err != nil {
		t.Fatalf("valid tables rejected: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Tables)
		wantSub string
	}{
		{
			"empty traffic",
			func(tb *Tables) { tb.Traffic = nil },
			"must not be empty",
		},
		{
			"unknown road",
			func(tb *Tables) { tb.Traffic[0].Road = "Ring Rd" },
			`unknown road "Ring Rd"`,
		},
		{
			"zero speed",
			func(tb *Tables) { tb.Traffic[1].SpeedKmh = 0 },
			"non-positive avg_speed",
		},
		{
			"negative speed",
			func(tb *Tables) { tb.Traffic[1].SpeedKmh = -5 },
			"non-positive avg_speed",
		},
		{
			"negative rain",
			func(tb *Tables) { tb.Weather[0].RainMm = -1 },
			"negative rain",
		},
		{
			"temp too low",
			func(tb *Tables) { tb.Weather[0].TempC = -30 },
			"out-of-range temp",
		},
		{
			"temp too high",
			func(tb *Tables) { tb.Weather[0].TempC = 70 },
			"out-of-range temp",
		},
		{
			"humidity over 100",
			func(tb *Tables) { tb.Weather[1].Humidity = 120 },
			"out-of-range humidity",
		},
		{
			"unknown event",
			func(tb *Tables) { tb.Events[0].EventType = "parade" },
			`unknown event_type "parade"`,
		},
		{
			"event timestamp not in traffic",
			func(tb *Tables) { tb.Events[0].Timestamp = tb.Events[0].Timestamp.Add(48 * time.Hour) },
			"absent from traffic data",
		},
		{
			"traffic timestamp not in weather",
			func(tb *Tables) { tb.Weather = tb.Weather[:1]; tb.Events = nil },
			"absent from weather data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := validTables()
			tt.mutate(tb)
			err := tb.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	tb := validTables()
	if warns := tb.Warnings(); len(warns) != 0 {
		t.Fatalf("plausible tables produced warnings: %v", warns)
	}

	tb.Traffic[0].SpeedKmh = 5 // below the plausible range, still valid
	tb.Traffic[2].SpeedKmh = 80
	warns := tb.Warnings()
	if len(warns) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warns), warns)
	}
	if !strings.Contains(warns[0], "row 2") || !strings.Contains(warns[0], "avg_speed=5") {
		t.Errorf("unexpected first warning: %q", warns[0])
	}
	if err := tb.Validate(); err != nil {
		t.Fatalf("implausible speeds should not fail validation: %v", err)
	}
}
