package features

import "fmt"

// Conditions describes a hypothetical prediction context. All fields are
// required; there are no implicit defaults.
type Conditions struct {
	Hour      int     `json:"hour"`
	Weekday   int     `json:"weekday"`
	RainMm    float64 `json:"rain"`
	TempC     float64 `json:"temperature"`
	Humidity  int     `json:"humidity"`
	EventType string  `json:"event_type"`
}

// Validate checks every field against its domain. Event membership in
// the closed set is checked during feature building, where the one-hot
// encoding happens; Validate only requires the label to be present.
func (c Conditions) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return &InvalidConditionsError{Field: "hour", Reason: fmt.Sprintf("%d outside [0,23]", c.Hour)}
	}
	if c.Weekday < 0 || c.Weekday > 6 {
		return &InvalidConditionsError{Field: "weekday", Reason: fmt.Sprintf("%d outside [0,6]", c.Weekday)}
	}
	if c.RainMm < 0 {
		return &InvalidConditionsError{Field: "rain", Reason: fmt.Sprintf("%g is negative", c.RainMm)}
	}
	if c.TempC < -20 || c.TempC > 60 {
		return &InvalidConditionsError{Field: "temperature", Reason: fmt.Sprintf("%g outside [-20,60]", c.TempC)}
	}
	if c.Humidity < 0 || c.Humidity > 100 {
		return &InvalidConditionsError{Field: "humidity", Reason: fmt.Sprintf("%d outside [0,100]", c.Humidity)}
	}
	if c.EventType == "" {
		return &InvalidConditionsError{Field: "event_type", Reason: "is required"}
	}
	return nil
}
