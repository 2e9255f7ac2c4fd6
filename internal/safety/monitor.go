// Package safety enforces the hard cutoffs every actuator command must pass through.
package safety

import "still_controller/internal/models"

// Verdict is the outcome of a safety check.
type Verdict struct {
	Command models.ActuatorCommand
	Fault   models.FaultReason // empty unless the controller must enter FAULT
}

// Faulted reports whether the verdict demands escalation to FAULT.
func (v Verdict) Faulted() bool {
	return v.Fault != models.FaultNone
}

// Monitor is a stateless evaluator over static limits.
type Monitor struct {
	limits models.SafetyLimits
}

// NewMonitor returns a Monitor enforcing limits.
func NewMonitor(limits models.SafetyLimits) Monitor {
	return Monitor{limits: limits}
}

// Limits returns the enforced limits.
func (m Monitor) Limits() models.SafetyLimits {
	return m.limits
}

// Check applies the safety rules in order; the first match wins.
//
//  1. invalid reading and failure streak at or over the limit: force off, sensor-timeout
//  2. temperature above the limit: force off, over-temperature
//  3. duty above the limit: clamp, keep source
//  4. pass through
//
// A SAFETY-sourced proposal is terminal and only ever passes through.
func (m Monitor) Check(r models.Reading, failureStreak int, proposed models.ActuatorCommand) Verdict {
	if !r.Valid && failureStreak >= m.limits.MaxConsecutiveInvalidReadings {
		return Verdict{Command: models.Off(models.SourceSafety), Fault: models.FaultSensorTimeout}
	}
	if r.Valid && r.Temperature > m.limits.MaxTemperature {
		return Verdict{Command: models.Off(models.SourceSafety), Fault: models.FaultOverTemperature}
	}
	if proposed.IsTerminal() {
		return Verdict{Command: proposed}
	}

	cmd := proposed
	if cmd.Duty > m.limits.MaxDuty {
		cmd.Duty = m.limits.MaxDuty
	} else if cmd.Duty < 0 {
		cmd.Duty = 0
	}
	return Verdict{Command: cmd}
}
