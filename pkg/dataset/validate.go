package dataset

import (
	"fmt"
	"time"
)

// Validate runs the pre-flight checks on the parsed tables: value ranges,
// road and event membership, and timestamp mergeability. It mirrors the
// checks run before training so that a bad dataset never reaches the
// feature builder.
func (t *Tables) Validate() error {
	if len(t.Traffic) == 0 || len(t.Weather) == 0 {
		return fmt.Errorf("%s and %s must not be empty", TrafficFile, WeatherFile)
	}

	trafficTS := make(map[time.Time]struct{}, len(t.Traffic))
	for i, tr := range t.Traffic {
		row := i + 2
		if tr.Road == "" {
			return fmt.Errorf("%s: row %d has empty road", TrafficFile, row)
		}
		if !IsKnownRoad(tr.Road) {
			return fmt.Errorf("%s: row %d has unknown road %q", TrafficFile, row, tr.Road)
		}
		if tr.SpeedKmh <= 0 {
			return fmt.Errorf("%s: row %d has non-positive avg_speed=%g", TrafficFile, row, tr.SpeedKmh)
		}
		trafficTS[tr.Timestamp] = struct{}{}
	}

	weatherTS := make(map[time.Time]struct{}, len(t.Weather))
	for i, w := range t.Weather {
		row := i + 2
		if w.RainMm < 0 {
			return fmt.Errorf("%s: row %d has negative rain=%g", WeatherFile, row, w.RainMm)
		}
		if w.TempC < -20 || w.TempC > 60 {
			return fmt.Errorf("%s: row %d has out-of-range temp=%g", WeatherFile, row, w.TempC)
		}
		if w.Humidity < 0 || w.Humidity > 100 {
			return fmt.Errorf("%s: row %d has out-of-range humidity=%d", WeatherFile, row, w.Humidity)
		}
		weatherTS[w.Timestamp] = struct{}{}
	}

	for i, e := range t.Events {
		row := i + 2
		if e.EventType == "" {
			return fmt.Errorf("%s: row %d has empty event_type", EventsFile, row)
		}
		if !IsKnownEventType(e.EventType) {
			return fmt.Errorf("%s: row %d has unknown event_type %q", EventsFile, row, e.EventType)
		}
		if _, ok := trafficTS[e.Timestamp]; !ok {
			return fmt.Errorf("mergeability check failed: event timestamp %s absent from traffic data",
				e.Timestamp.Format(TimestampLayout))
		}
	}

	missingWeather := 0
	for ts := range trafficTS {
		if _, ok := weatherTS[ts]; !ok {
			missingWeather++
		}
	}
	if missingWeather > 0 {
		return fmt.Errorf("mergeability check failed: %d traffic timestamps absent from weather data", missingWeather)
	}

	return nil
}

// Typical speed range for Accra roads. Values outside it are suspicious
// but not fatal.
const (
	plausibleSpeedMin = 10.0
	plausibleSpeedMax = 60.0
)

// Warnings reports non-fatal oddities in the traffic table, one message
// per suspicious row. An empty result means the data looks plausible.
func (t *Tables) Warnings() []string {
	var warns []string
	for i, tr := range t.Traffic {
		if tr.SpeedKmh < plausibleSpeedMin || tr.SpeedKmh > plausibleSpeedMax {
			warns = append(warns, fmt.Sprintf("%s: row %d has implausible avg_speed=%g (expected %g-%g)",
				TrafficFile, i+2, tr.SpeedKmh, plausibleSpeedMin, plausibleSpeedMax))
		}
	}
	return warns
}
