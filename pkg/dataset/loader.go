package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// File names expected inside the data directory.
const (
	TrafficFile = "traffic_data.csv"
	WeatherFile = "weather_data.csv"
	EventsFile  = "events_data.csv"
)

var expectedColumns = map[string][]string{
	TrafficFile: {"road", "timestamp", "avg_speed"},
	WeatherFile: {"timestamp", "rain", "temp", "humidity"},
	EventsFile:  {"timestamp", "event_type"},
}

// TrafficRow is one parsed row of traffic_data.csv.
type TrafficRow struct {
	Road      string
	Timestamp time.Time
	SpeedKmh  float64
}

// WeatherRow is one parsed row of weather_data.csv.
type WeatherRow struct {
	Timestamp time.Time
	RainMm    float64
	TempC     float64
	Humidity  int
}

// EventRow is one parsed row of events_data.csv.
type EventRow struct {
	Timestamp time.Time
	EventType string
}

// Tables holds the three parsed source tables before merging.
type Tables struct {
	Traffic []TrafficRow
	Weather []WeatherRow
	Events  []EventRow
}

// Load reads and parses the three CSV tables from dir. Header order and
// cell syntax are checked here; value ranges and mergeability are checked
// by Validate.
func Load(dir string) (*Tables, error) {
	trafficRecs, err := readCSV(dir, TrafficFile)
	if err != nil {
		return nil, err
	}
	weatherRecs, err := readCSV(dir, WeatherFile)
	if err != nil {
		return nil, err
	}
	eventRecs, err := readCSV(dir, EventsFile)
	if err != nil {
		return nil, err
	}

	t := &Tables{}

	for i, rec := range trafficRecs {
		row := i + 2 // 1-based, after header
		ts, err := parseTimestamp(rec[1], TrafficFile, row)
		if err != nil {
			return nil, err
		}
		speed, err := parseFloat(rec[2], TrafficFile, row, "avg_speed")
		if err != nil {
			return nil, err
		}
		t.Traffic = append(t.Traffic, TrafficRow{Road: rec[0], Timestamp: ts, SpeedKmh: speed})
	}

	for i, rec := range weatherRecs {
		row := i + 2
		ts, err := parseTimestamp(rec[0], WeatherFile, row)
		if err != nil {
			return nil, err
		}
		rain, err := parseFloat(rec[1], WeatherFile, row, "rain")
		if err != nil {
			return nil, err
		}
		temp, err := parseFloat(rec[2], WeatherFile, row, "temp")
		if err != nil {
			return nil, err
		}
		humidity, err := parseInt(rec[3], WeatherFile, row, "humidity")
		if err != nil {
			return nil, err
		}
		t.Weather = append(t.Weather, WeatherRow{Timestamp: ts, RainMm: rain, TempC: temp, Humidity: humidity})
	}

	for i, rec := range eventRecs {
		row := i + 2
		ts, err := parseTimestamp(rec[0], EventsFile, row)
		if err != nil {
			return nil, err
		}
		t.Events = append(t.Events, EventRow{Timestamp: ts, EventType: rec[1]})
	}

	return t, nil
}

// Merge left-joins traffic rows with weather and events on timestamp.
// A traffic row without a weather row fails with AlignmentError; a
// traffic row without an event row gets the "none" sentinel.
func (t *Tables) Merge() ([]Observation, error) {
	weatherByTS := make(map[time.Time]WeatherRow, len(t.Weather))
	for _, w := range t.Weather {
		weatherByTS[w.Timestamp] = w
	}
	eventsByTS := make(map[time.Time]string, len(t.Events))
	for _, e := range t.Events {
		eventsByTS[e.Timestamp] = e.EventType
	}

	obs := make([]Observation, 0, len(t.Traffic))
	for _, tr := range t.Traffic {
		w, ok := weatherByTS[tr.Timestamp]
		if !ok {
			return nil, &AlignmentError{Road: tr.Road, Timestamp: tr.Timestamp}
		}
		event, ok := eventsByTS[tr.Timestamp]
		if !ok {
			event = EventNone
		}
		obs = append(obs, Observation{
			Road:      tr.Road,
			Timestamp: tr.Timestamp,
			SpeedKmh:  tr.SpeedKmh,
			RainMm:    w.RainMm,
			TempC:     w.TempC,
			Humidity:  w.Humidity,
			EventType: event,
		})
	}
	return obs, nil
}

func readCSV(dir, name string) ([][]string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header row", name)
	}

	expected := expectedColumns[name]
	header := records[0]
	if len(header) != len(expected) {
		return nil, fmt.Errorf("%s: schema mismatch (expected %v, got %v)", name, expected, header)
	}
	for i, col := range expected {
		if header[i] != col {
			return nil, fmt.Errorf("%s: schema mismatch (expected %v, got %v)", name, expected, header)
		}
	}

	return records[1:], nil
}

func parseTimestamp(raw, file string, row int) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s: row %d has empty timestamp", file, row)
	}
	ts, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: row %d has invalid timestamp %q (expected %s)", file, row, raw, TimestampLayout)
	}
	return ts, nil
}

func parseFloat(raw, file string, row int, field string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s: row %d has empty %s", file, row, field)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: row %d has non-numeric %s=%q", file, row, field, raw)
	}
	return v, nil
}

func parseInt(raw, file string, row int, field string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s: row %d has empty %s", file, row, field)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: row %d has non-integer %s=%q", file, row, field, raw)
	}
	return v, nil
}
