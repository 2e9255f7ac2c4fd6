// Package phase implements the distillation phase state machine and its duty policy.
//
// The controller owns PhaseState exclusively. Transitions are the only mutation path
// and every transition resets the phase-scoped counters.
package phase

import (
	"errors"
	"fmt"
	"math"
	"time"

	"still_controller/internal/models"
)

var (
	ErrInvalidTransition = errors.New("phase: transition not allowed")
	ErrFaulted           = errors.New("phase: controller is in FAULT; reset required")
	ErrResetUnsafe       = errors.New("phase: reset rejected, temperature not below safe-handle threshold")
)

// Transition describes one accepted phase change.
type Transition struct {
	From  models.Phase
	To    models.Phase
	At    time.Time
	Cause string
}

// Decision is the outcome of one control step.
type Decision struct {
	Command    models.ActuatorCommand
	Transition *Transition // nil when the phase did not change
}

// Controller is the distillation state machine.
type Controller struct {
	cfg   Config
	state models.PhaseState
}

// NewController returns a controller in IDLE.
func NewController(cfg Config, now time.Time) *Controller {
	return &Controller{
		cfg:   cfg,
		state: models.PhaseState{Phase: models.PhaseIdle, EnteredAt: now},
	}
}

// State returns a copy of the current phase state.
func (c *Controller) State() models.PhaseState {
	return c.state
}

// Step advances time- and reading-driven transitions and proposes a duty for the tick.
func (c *Controller) Step(r models.Reading, now time.Time) Decision {
	var tr *Transition

	switch c.state.Phase {
	case models.PhaseHeating:
		if c.inBand(r) {
			c.state.StableSamples++
			if c.state.StableSamples >= c.cfg.StableSamples {
				tr = c.enter(models.PhaseStabilizing, now, "temperature stable within tolerance")
			}
		} else {
			c.state.StableSamples = 0
		}

	case models.PhaseStabilizing:
		switch {
		case !r.Valid:
			// no data; hold position, do not count
		case !c.inBand(r):
			tr = c.enter(models.PhaseHeating, now, "temperature left tolerance band")
		default:
			c.state.StableSamples++
			if now.Sub(c.state.EnteredAt) >= c.cfg.HoldDuration {
				tr = c.enter(models.PhaseDistilling, now, "hold duration elapsed")
			}
		}

	case models.PhaseDistilling:
		if now.Sub(c.state.EnteredAt) >= c.cfg.DistillDuration {
			tr = c.enter(models.PhaseCooldown, now, "distillation duration elapsed")
		}

	case models.PhaseCooldown:
		if r.Below(c.cfg.SafeHandleTemperature) {
			tr = c.enter(models.PhaseIdle, now, "temperature below safe-handle threshold")
		}
	}

	return Decision{Command: c.duty(r), Transition: tr}
}

// Request handles an external SET_PHASE command.
func (c *Controller) Request(target models.Phase, now time.Time) (*Transition, error) {
	from := c.state.Phase
	if from == models.PhaseFault {
		return nil, ErrFaulted
	}

	switch {
	case target == models.PhaseHeating && from == models.PhaseIdle:
		return c.enter(models.PhaseHeating, now, "start requested"), nil
	case target == models.PhaseCooldown && from.Heats():
		return c.enter(models.PhaseCooldown, now, "stop requested"), nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
}

// Fault moves the controller into FAULT. Repeated calls while faulted are no-ops and
// return nil, so escalation happens exactly once.
func (c *Controller) Fault(reason models.FaultReason, now time.Time) *Transition {
	if c.state.Phase == models.PhaseFault {
		return nil
	}
	tr := c.enter(models.PhaseFault, now, string(reason))
	c.state.Fault = reason
	return tr
}

// Reset leaves FAULT for IDLE, only when the latest reading is valid and below the
// safe-handle threshold.
func (c *Controller) Reset(r models.Reading, now time.Time) (*Transition, error) {
	if c.state.Phase != models.PhaseFault {
		return nil, fmt.Errorf("%w: reset outside FAULT (phase %s)", ErrInvalidTransition, c.state.Phase)
	}
	if !r.Below(c.cfg.SafeHandleTemperature) {
		return nil, ErrResetUnsafe
	}
	return c.enter(models.PhaseIdle, now, "reset"), nil
}

func (c *Controller) enter(p models.Phase, now time.Time, cause string) *Transition {
	tr := &Transition{From: c.state.Phase, To: p, At: now, Cause: cause}
	c.state = models.PhaseState{Phase: p, EnteredAt: now}
	return tr
}

func (c *Controller) inBand(r models.Reading) bool {
	return r.Valid && math.Abs(r.Temperature-c.cfg.TargetTemperature) <= c.cfg.Tolerance
}

// duty is a proportional policy keyed to the distance below target.
func (c *Controller) duty(r models.Reading) models.ActuatorCommand {
	if c.state.Phase == models.PhaseFault {
		return models.Off(models.SourceSafety)
	}
	if !c.state.Phase.Heats() || !r.Valid {
		return models.Off(models.SourcePhase)
	}

	d := int(math.Round(100 * (c.cfg.TargetTemperature - r.Temperature) / c.cfg.ProportionalBand))
	if d < 0 {
		d = 0
	} else if d > 100 {
		d = 100
	}
	return models.ActuatorCommand{Duty: d, Source: models.SourcePhase}
}
