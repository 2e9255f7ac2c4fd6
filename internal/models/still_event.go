package models

import "time"

// Event types recorded in the journal.
const (
	EventPhaseChange     = "PHASE_CHANGE"
	EventFault           = "FAULT"
	EventCommand         = "COMMAND"
	EventCommandRejected = "COMMAND_REJECTED"
	EventShutdown        = "SHUTDOWN"
)

// StillEvent is a single journal entry.
type StillEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // PHASE_CHANGE | FAULT | COMMAND | COMMAND_REJECTED | SHUTDOWN
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
