// Package actuator abstracts the heater output behind an idempotent apply.
package actuator

import (
	"errors"
	"fmt"

	"still_controller/internal/models"
)

// Hardware is the heater driver collaborator.
type Hardware interface {
	SetDuty(percent int) error
}

// ErrConfirm means the hardware refused or failed to apply a duty. The caller must treat
// it like a safety violation.
var ErrConfirm = errors.New("actuator: hardware did not confirm duty")

// Applied is the last state the hardware confirmed.
type Applied struct {
	Duty      int                  `json:"duty"`
	Source    models.CommandSource `json:"source"`
	Confirmed bool                 `json:"confirmed"`
}

// Actuator forwards duty changes to Hardware, skipping repeats of a confirmed duty.
type Actuator struct {
	hw   Hardware
	last Applied
}

// New returns an Actuator whose initial state is unconfirmed, so the first apply always
// reaches the hardware.
func New(hw Hardware) *Actuator {
	return &Actuator{hw: hw}
}

// Apply drives the hardware to cmd.Duty and returns the confirmed state.
func (a *Actuator) Apply(cmd models.ActuatorCommand) (Applied, error) {
	if a.last.Confirmed && a.last.Duty == cmd.Duty {
		a.last.Source = cmd.Source
		return a.last, nil
	}

	if err := a.hw.SetDuty(cmd.Duty); err != nil {
		a.last.Confirmed = false
		return a.last, fmt.Errorf("%w: duty %d: %v", ErrConfirm, cmd.Duty, err)
	}

	a.last = Applied{Duty: cmd.Duty, Source: cmd.Source, Confirmed: true}
	return a.last, nil
}

// Last reports the most recent state without touching the hardware.
func (a *Actuator) Last() Applied {
	return a.last
}
