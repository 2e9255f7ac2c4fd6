package phase

import (
	"errors"
	"time"
)

// Config holds the tunable thresholds of the distillation state machine.
type Config struct {
	TargetTemperature     float64       `mapstructure:"target_temperature"`
	Tolerance             float64       `mapstructure:"tolerance"`
	StableSamples         int           `mapstructure:"stable_samples"`
	HoldDuration          time.Duration `mapstructure:"hold_duration"`
	DistillDuration       time.Duration `mapstructure:"distill_duration"`
	SafeHandleTemperature float64       `mapstructure:"safe_handle_temperature"`
	ProportionalBand      float64       `mapstructure:"proportional_band"`
}

// Validate rejects thresholds that would make the state machine unreachable.
func (c Config) Validate() error {
	switch {
	case c.TargetTemperature <= 0:
		return errors.New("phase: target_temperature must be > 0")
	case c.Tolerance <= 0:
		return errors.New("phase: tolerance must be > 0")
	case c.StableSamples < 1:
		return errors.New("phase: stable_samples must be >= 1")
	case c.HoldDuration < 0:
		return errors.New("phase: hold_duration must be >= 0")
	case c.DistillDuration <= 0:
		return errors.New("phase: distill_duration must be > 0")
	case c.SafeHandleTemperature >= c.TargetTemperature-c.Tolerance:
		return errors.New("phase: safe_handle_temperature must be below the tolerance band")
	case c.ProportionalBand <= 0:
		return errors.New("phase: proportional_band must be > 0")
	}
	return nil
}
