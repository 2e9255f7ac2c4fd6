package models

import "time"

// Counters are observability counters accumulated by the supervisor.
type Counters struct {
	Overruns          uint64 `json:"overruns"`
	SensorFailures    int    `json:"sensor_failures"` // current consecutive streak
	MalformedCommands uint64 `json:"malformed_commands"`
	RejectedCommands  uint64 `json:"rejected_commands"`
	TransportErrors   uint64 `json:"transport_errors"`
}

// SystemSnapshot is the immutable, point-in-time view of the controller.
// It is the only structure handed outside the control loop.
type SystemSnapshot struct {
	Tick           uint64          `json:"tick"`
	Phase          Phase           `json:"phase"`
	PhaseEnteredAt time.Time       `json:"phase_entered_at"`
	Reading        Reading         `json:"reading"`
	Command        ActuatorCommand `json:"command"`
	AppliedDuty    int             `json:"applied_duty"`
	FaultReason    FaultReason     `json:"fault_reason,omitempty"`
	ManualDuty     *int            `json:"manual_duty,omitempty"`
	TrendCPerMin   float64         `json:"trend_c_per_min"`
	Uptime         time.Duration   `json:"uptime_ns"`
	Indicator      string          `json:"indicator"`
	IndicatorSet   bool            `json:"indicator_override,omitempty"`
	ShuttingDown   bool            `json:"shutting_down,omitempty"`
	Counters       Counters        `json:"counters"`
	TakenAt        time.Time       `json:"taken_at"`
}

// BaselineSnapshot describes a controller that has not ticked yet.
func BaselineSnapshot(now time.Time) SystemSnapshot {
	return SystemSnapshot{
		Phase:          PhaseIdle,
		PhaseEnteredAt: now,
		Reading:        InvalidReading(now),
		Command:        Off(SourcePhase),
		Indicator:      PhaseIdle.Indicator(),
		TakenAt:        now,
	}
}
