package service

import "time"

// ManualParams is the body of a manual duty override.
type ManualParams struct {
	Duty *int `json:"duty" binding:"required"` // 0..100
}

// IndicatorParams is the body of a status LED colour override.
type IndicatorParams struct {
	R *int `json:"r" binding:"required,min=0,max=255"`
	G *int `json:"g" binding:"required,min=0,max=255"`
	B *int `json:"b" binding:"required,min=0,max=255"`
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "PHASE_CHANGE", "FAULT", "COMMAND", "COMMAND_REJECTED", "SHUTDOWN"
	Limit int       // 0 means DefaultLogLimit
}
