package models

import (
	"errors"
	"time"
)

// SafetyLimits are the hard cutoffs enforced independently of phase logic.
// Loaded once at startup.
type SafetyLimits struct {
	MaxTemperature                float64       `mapstructure:"max_temperature" json:"max_temperature"`
	MaxDuty                       int           `mapstructure:"max_duty" json:"max_duty"`
	SensorTimeout                 time.Duration `mapstructure:"sensor_timeout" json:"sensor_timeout"`
	MaxConsecutiveInvalidReadings int           `mapstructure:"max_consecutive_invalid_readings" json:"max_consecutive_invalid_readings"`
}

var (
	errMaxTemperature = errors.New("safety: max_temperature must be > 0")
	errMaxDuty        = errors.New("safety: max_duty must be within 0..100")
	errSensorTimeout  = errors.New("safety: sensor_timeout must be > 0")
	errInvalidStreak  = errors.New("safety: max_consecutive_invalid_readings must be >= 1")
)

// Validate checks that the limits describe an enforceable envelope.
func (l SafetyLimits) Validate() error {
	switch {
	case l.MaxTemperature <= 0:
		return errMaxTemperature
	case l.MaxDuty < 0 || l.MaxDuty > 100:
		return errMaxDuty
	case l.SensorTimeout <= 0:
		return errSensorTimeout
	case l.MaxConsecutiveInvalidReadings < 1:
		return errInvalidStreak
	}
	return nil
}
