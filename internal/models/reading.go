package models

import (
	"fmt"
	"time"
)

// Reading is one measurement cycle of the process sensor.
// A reading is never mutated; the next cycle supersedes it.
type Reading struct {
	Temperature float64   `json:"temperature_c"`
	Humidity    float64   `json:"humidity_pct"`
	Timestamp   time.Time `json:"timestamp"`
	Valid       bool      `json:"valid"`
}

// NewReading returns a valid reading taken at ts.
func NewReading(temperature, humidity float64, ts time.Time) Reading {
	return Reading{
		Temperature: temperature,
		Humidity:    humidity,
		Timestamp:   ts,
		Valid:       true,
	}
}

// InvalidReading returns the only permitted shape of a failed measurement:
// no numeric fields, Valid=false.
func InvalidReading(ts time.Time) Reading {
	return Reading{Timestamp: ts}
}

// Below reports whether the reading is valid and strictly below limit.
// An invalid reading is never below anything.
func (r Reading) Below(limit float64) bool {
	return r.Valid && r.Temperature < limit
}

func (r Reading) String() string {
	if !r.Valid {
		return fmt.Sprintf("invalid reading at %s", r.Timestamp.Format(time.RFC3339))
	}
	return fmt.Sprintf("%.2f°C %.1f%% at %s", r.Temperature, r.Humidity, r.Timestamp.Format(time.RFC3339))
}
