package models

import "time"

// Phase is a named stage of the distillation run.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseHeating     Phase = "HEATING"
	PhaseStabilizing Phase = "STABILIZING"
	PhaseDistilling  Phase = "DISTILLING"
	PhaseCooldown    Phase = "COOLDOWN"
	PhaseFault       Phase = "FAULT"
)

// ParsePhase maps a wire value onto a known phase.
func ParsePhase(s string) (Phase, bool) {
	switch p := Phase(s); p {
	case PhaseIdle, PhaseHeating, PhaseStabilizing, PhaseDistilling, PhaseCooldown, PhaseFault:
		return p, true
	}
	return "", false
}

// Heats reports whether the phase drives the heater toward the target.
func (p Phase) Heats() bool {
	return p == PhaseHeating || p == PhaseStabilizing || p == PhaseDistilling
}

// Indicator is the status LED colour shown for the phase.
func (p Phase) Indicator() string {
	switch p {
	case PhaseIdle:
		return "#0000ff"
	case PhaseHeating:
		return "#ff8000"
	case PhaseStabilizing:
		return "#ffff00"
	case PhaseDistilling:
		return "#00ff00"
	case PhaseCooldown:
		return "#00ffff"
	case PhaseFault:
		return "#ff0000"
	default:
		return "#000000"
	}
}

// FaultReason explains why the controller entered FAULT.
type FaultReason string

const (
	FaultNone            FaultReason = ""
	FaultOverTemperature FaultReason = "over-temperature"
	FaultSensorTimeout   FaultReason = "sensor-timeout"
	FaultActuator        FaultReason = "actuator-failure"
)

// PhaseState is the controller's state machine position plus phase-scoped counters.
type PhaseState struct {
	Phase         Phase       `json:"phase"`
	EnteredAt     time.Time   `json:"entered_at"`
	Fault         FaultReason `json:"fault,omitempty"`
	StableSamples int         `json:"stable_samples"`
}
