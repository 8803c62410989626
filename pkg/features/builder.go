package features

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kofiasante/accracast/pkg/dataset"
)

// rollingWindow is the number of trailing periods covered by the rolling
// mean and standard deviation features.
const rollingWindow = 3

// Builder derives feature frames from observations and single query
// vectors from prediction conditions. It holds no state between calls;
// the same input always yields the same output.
type Builder struct{}

// NewBuilder creates a feature builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build turns merged observations into one training frame per road.
// Within each road, rows are ordered by timestamp so that lag and
// rolling features see genuine history. Where history does not exist yet
// (the start of a series), lag and rolling features fall back to the
// road's mean speed, and the rolling deviation to zero.
func (b *Builder) Build(obs []dataset.Observation) (map[string]*Frame, error) {
	byRoad := make(map[string][]dataset.Observation)
	for _, o := range obs {
		if !dataset.IsKnownRoad(o.Road) {
			return nil, &dataset.UnknownRoadError{Road: o.Road}
		}
		byRoad[o.Road] = append(byRoad[o.Road], o)
	}

	frames := make(map[string]*Frame, len(byRoad))
	for road, rows := range byRoad {
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		})

		speeds := make([]float64, len(rows))
		for i, o := range rows {
			speeds[i] = o.SpeedKmh
		}
		meanSpeed := stat.Mean(speeds, nil)

		frame := &Frame{
			Road:      road,
			Schema:    Columns(),
			Rows:      make([][]float64, 0, len(rows)),
			Targets:   make([]float64, 0, len(rows)),
			MeanSpeed: meanSpeed,
		}

		for i, o := range rows {
			lag, rollMean, rollStd := historyFeatures(speeds[:i], meanSpeed)
			row, err := encodeRow(o.Timestamp.Hour(), int(o.Timestamp.Weekday()),
				o.RainMm, o.TempC, o.Humidity, o.EventType, lag, rollMean, rollStd)
			if err != nil {
				return nil, err
			}
			frame.Rows = append(frame.Rows, row)
			frame.Targets = append(frame.Targets, o.SpeedKmh)
		}

		frames[road] = frame
	}

	return frames, nil
}

// BuildQuery builds the single feature vector for a prediction request.
// recent supplies the most recent observed speeds for the road, oldest
// first; when empty, lag and rolling features fall back to fallbackMean,
// the road's training-time mean speed.
func (b *Builder) BuildQuery(cond Conditions, recent []float64, fallbackMean float64) (Vector, error) {
	if err := cond.Validate(); err != nil {
		return Vector{}, err
	}

	lag, rollMean, rollStd := historyFeatures(recent, fallbackMean)
	row, err := encodeRow(cond.Hour, cond.Weekday, cond.RainMm, cond.TempC, cond.Humidity,
		cond.EventType, lag, rollMean, rollStd)
	if err != nil {
		return Vector{}, err
	}

	return Vector{Schema: Columns(), Values: row}, nil
}

// historyFeatures computes the lag and rolling statistics from the
// speeds preceding the current period. fallback fills in where no
// history exists.
func historyFeatures(prior []float64, fallback float64) (lag, rollMean, rollStd float64) {
	if len(prior) == 0 {
		return fallback, fallback, 0
	}

	lag = prior[len(prior)-1]

	window := prior
	if len(window) > rollingWindow {
		window = window[len(window)-rollingWindow:]
	}
	rollMean = stat.Mean(window, nil)
	if len(window) > 1 {
		rollStd = stat.StdDev(window, nil)
	}
	return lag, rollMean, rollStd
}

// encodeRow produces one feature row in canonical column order.
func encodeRow(hour, weekday int, rainMm, tempC float64, humidity int, event string,
	lag, rollMean, rollStd float64) ([]float64, error) {

	oneHot, err := EventOneHot(event)
	if err != nil {
		return nil, err
	}

	row := make([]float64, 0, len(columns))
	row = append(row,
		HourSin(hour),
		HourCos(hour),
		WeekdaySin(weekday),
		WeekdayCos(weekday),
		boolFeature(weekday == 0 || weekday == 6),
		boolFeature(IsRushHour(hour)),
		RainLevel(rainMm),
		TempLevel(tempC),
		HumidityLevel(humidity),
	)
	row = append(row, oneHot...)
	row = append(row, lag, rollMean, rollStd)
	return row, nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
