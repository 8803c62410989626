// Package features derives model-ready feature vectors from merged
// traffic observations and from hypothetical prediction conditions.
//
// The feature schema is fixed at compile time: every vector carries the
// same columns in the same order, and the model registry rejects any
// vector whose schema differs from the one it was trained on. Bucket
// boundaries (rain, temperature, humidity) are policy constants and must
// stay identical between training and prediction.
package features

import (
	"fmt"
	"math"
)

// Schema is an ordered list of feature column names.
type Schema []string

// Equal reports whether two schemas have the same columns in the same
// order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// columns is the canonical feature schema. Order matters: the regressor
// has no column labels of its own.
var columns = Schema{
	"hour_sin",
	"hour_cos",
	"weekday_sin",
	"weekday_cos",
	"is_weekend",
	"is_rush_hour",
	"rain_level",
	"temp_level",
	"humidity_level",
	"event_none",
	"event_concert",
	"event_sports",
	"event_festival",
	"event_market_day",
	"event_accident",
	"lag_speed",
	"rolling_mean",
	"rolling_std",
}

// Columns returns a copy of the canonical feature schema.
func Columns() Schema {
	out := make(Schema, len(columns))
	copy(out, columns)
	return out
}

// Vector is one feature row together with the schema it was built
// against.
type Vector struct {
	Schema Schema
	Values []float64
}

// Frame holds the training matrix for one road: feature rows, target
// speeds, and the road's mean speed used as the boundary fill for lag
// and rolling features.
type Frame struct {
	Road      string
	Schema    Schema
	Rows      [][]float64
	Targets   []float64
	MeanSpeed float64
}

// UnknownEventTypeError reports an event label outside the closed
// six-value set. Encoding an unknown event as all-zero would silently
// skew prediction against training, so this fails fast instead.
type UnknownEventTypeError struct {
	Event string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Event)
}

// InvalidConditionsError reports a conditions field outside its valid
// domain.
type InvalidConditionsError struct {
	Field  string
	Reason string
}

func (e *InvalidConditionsError) Error() string {
	return fmt.Sprintf("invalid conditions: %s %s", e.Field, e.Reason)
}

// rushHours is the fixed set of congested hours.
var rushHours = map[int]bool{7: true, 8: true, 9: true, 17: true, 18: true, 19: true}

// IsRushHour reports whether hour falls in the fixed rush-hour set.
func IsRushHour(hour int) bool {
	return rushHours[hour]
}

// HourSin and HourCos encode the hour of day on the unit circle with
// period 24, so hour 23 and hour 0 end up adjacent instead of 23 apart.
func HourSin(hour int) float64 {
	return math.Sin(2 * math.Pi * float64(hour) / 24)
}

func HourCos(hour int) float64 {
	return math.Cos(2 * math.Pi * float64(hour) / 24)
}

// WeekdaySin and WeekdayCos encode the weekday with period 7.
func WeekdaySin(weekday int) float64 {
	return math.Sin(2 * math.Pi * float64(weekday) / 7)
}

func WeekdayCos(weekday int) float64 {
	return math.Cos(2 * math.Pi * float64(weekday) / 7)
}

// Rain bucket thresholds in mm, following the usual light/moderate/heavy
// meteorological cut points.
const (
	rainLightMax    = 2.5
	rainModerateMax = 7.6
)

// RainLevel buckets rainfall into none(0)/light(1)/moderate(2)/heavy(3).
func RainLevel(mm float64) float64 {
	switch {
	case mm <= 0:
		return 0
	case mm < rainLightMax:
		return 1
	case mm < rainModerateMax:
		return 2
	default:
		return 3
	}
}

// TempLevel bins temperature into fixed-width ranges with edges at
// 20/25/30/35 °C, returning the bin index 0..4.
func TempLevel(c float64) float64 {
	switch {
	case c < 20:
		return 0
	case c < 25:
		return 1
	case c < 30:
		return 2
	case c < 35:
		return 3
	default:
		return 4
	}
}

// HumidityLevel thresholds humidity into low(0)/medium(1)/high(2) at
// 40% and 70%.
func HumidityLevel(percent int) float64 {
	switch {
	case percent < 40:
		return 0
	case percent <= 70:
		return 1
	default:
		return 2
	}
}

// eventOrder fixes the one-hot column order for the closed event set.
var eventOrder = []string{"none", "concert", "sports", "festival", "market_day", "accident"}

// EventOneHot encodes an event label as a one-hot slice over the six
// known types. Unknown labels fail rather than encode as all-zero.
func EventOneHot(event string) ([]float64, error) {
	out := make([]float64, len(eventOrder))
	for i, e := range eventOrder {
		if e == event {
			out[i] = 1
			return out, nil
		}
	}
	return nil, &UnknownEventTypeError{Event: event}
}
