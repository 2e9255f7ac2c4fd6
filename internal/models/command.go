package models

// CommandSource identifies which stage produced an actuator command.
type CommandSource string

const (
	SourcePhase  CommandSource = "PHASE"
	SourceSafety CommandSource = "SAFETY"
	SourceManual CommandSource = "MANUAL"
)

// ActuatorCommand is the heater duty requested for one tick.
type ActuatorCommand struct {
	Duty   int           `json:"duty"` // 0-100 %
	Source CommandSource `json:"source"`
}

// Off returns a zero-duty command from source.
func Off(source CommandSource) ActuatorCommand {
	return ActuatorCommand{Duty: 0, Source: source}
}

// IsTerminal reports whether no later stage of the tick may override the command.
func (c ActuatorCommand) IsTerminal() bool {
	return c.Source == SourceSafety
}
