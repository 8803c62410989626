// Package dataset loads and merges the three Accra traffic tables
// (traffic, weather, events) into time-aligned observations.
//
// The tables are column-delimited CSV files indexed at minute resolution:
//
//	traffic_data.csv  road, timestamp, avg_speed
//	weather_data.csv  timestamp, rain, temp, humidity
//	events_data.csv   timestamp, event_type
//
// Traffic rows are left-joined with weather on timestamp; a traffic row
// without a matching weather row is a hard failure. Event rows are
// optional and default to "none".
package dataset

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TimestampLayout is the timestamp format used by all three tables.
const TimestampLayout = "2006-01-02 15:04:05"

// EventNone is the sentinel event type for timestamps without an event.
const EventNone = "none"

// KnownRoads lists the modeled road segments.
var KnownRoads = []string{"Circle Rd", "Spintex Rd", "Independence Ave"}

// KnownEventTypes is the closed set of event labels, including the
// "none" sentinel.
var KnownEventTypes = []string{EventNone, "concert", "sports", "festival", "market_day", "accident"}

// IsKnownRoad reports whether road is one of the modeled segments.
func IsKnownRoad(road string) bool {
	for _, r := range KnownRoads {
		if r == road {
			return true
		}
	}
	return false
}

// IsKnownEventType reports whether event is in the closed event set.
func IsKnownEventType(event string) bool {
	for _, e := range KnownEventTypes {
		if e == event {
			return true
		}
	}
	return false
}

// Observation is one merged traffic+weather+event data point for a road
// at a timestamp.
type Observation struct {
	Road      string
	Timestamp time.Time
	SpeedKmh  float64
	RainMm    float64
	TempC     float64
	Humidity  int
	EventType string
}

// UnknownRoadError reports a road outside the modeled set.
type UnknownRoadError struct {
	Road string
}

func (e *UnknownRoadError) Error() string {
	return fmt.Sprintf("unknown road %q", e.Road)
}

// AlignmentError reports a traffic row whose timestamp has no matching
// weather row, which makes the merge undefined.
type AlignmentError struct {
	Road      string
	Timestamp time.Time
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("no weather data for road %q at %s", e.Road, e.Timestamp.Format(TimestampLayout))
}

// Store holds merged observations grouped by road, sorted by timestamp
// within each road. It is read-only after construction and safe for
// concurrent readers.
type Store struct {
	obs    []Observation
	byRoad map[string][]Observation
}

// NewStore groups observations by road and sorts each group by timestamp.
func NewStore(obs []Observation) *Store {
	byRoad := make(map[string][]Observation)
	for _, o := range obs {
		byRoad[o.Road] = append(byRoad[o.Road], o)
	}
	for road := range byRoad {
		rows := byRoad[road]
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		})
		byRoad[road] = rows
	}
	return &Store{obs: obs, byRoad: byRoad}
}

// Observations returns all merged observations.
func (s *Store) Observations() []Observation {
	return s.obs
}

// Road returns the observations for a single road, sorted by timestamp.
func (s *Store) Road(road string) ([]Observation, error) {
	rows, ok := s.byRoad[road]
	if !ok {
		return nil, &UnknownRoadError{Road: road}
	}
	return rows, nil
}

// RecentSpeeds returns up to n most recent speeds for a road, oldest
// first. An unknown road yields an UnknownRoadError.
func (s *Store) RecentSpeeds(ctx context.Context, road string, n int) ([]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rows, ok := s.byRoad[road]
	if !ok {
		return nil, &UnknownRoadError{Road: road}
	}
	if len(rows) == 0 || n <= 0 {
		return nil, nil
	}
	if n > len(rows) {
		n = len(rows)
	}
	speeds := make([]float64, n)
	for i, o := range rows[len(rows)-n:] {
		speeds[i] = o.SpeedKmh
	}
	return speeds, nil
}

// Len returns the number of merged observations.
func (s *Store) Len() int {
	return len(s.obs)
}
