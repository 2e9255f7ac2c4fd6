package models

// CommandKind is the variant tag of an inbound command.
type CommandKind string

const (
	KindSetPhase      CommandKind = "SET_PHASE"
	KindReset         CommandKind = "RESET"
	KindSetManualDuty CommandKind = "SET_MANUAL_DUTY"
	KindClearManual   CommandKind = "CLEAR_MANUAL"
	KindShutdown      CommandKind = "SHUTDOWN"

	KindSetIndicator   CommandKind = "SET_INDICATOR"
	KindClearIndicator CommandKind = "CLEAR_INDICATOR"
)

// Known reports whether the kind is one this controller understands.
func (k CommandKind) Known() bool {
	switch k {
	case KindSetPhase, KindReset, KindSetManualDuty, KindClearManual, KindShutdown,
		KindSetIndicator, KindClearIndicator:
		return true
	}
	return false
}

// InboundCommand is a remote request consumed by the supervisor, at most one per tick.
type InboundCommand struct {
	Kind  CommandKind `json:"type"`
	Phase Phase       `json:"phase,omitempty"` // SET_PHASE target
	Duty  int         `json:"duty,omitempty"`  // SET_MANUAL_DUTY value
	Color string      `json:"color,omitempty"` // SET_INDICATOR "#rrggbb"
}

func SetPhase(p Phase) InboundCommand    { return InboundCommand{Kind: KindSetPhase, Phase: p} }
func Reset() InboundCommand              { return InboundCommand{Kind: KindReset} }
func SetManualDuty(d int) InboundCommand { return InboundCommand{Kind: KindSetManualDuty, Duty: d} }
func ClearManual() InboundCommand        { return InboundCommand{Kind: KindClearManual} }
func Shutdown() InboundCommand           { return InboundCommand{Kind: KindShutdown} }

func SetIndicator(color string) InboundCommand {
	return InboundCommand{Kind: KindSetIndicator, Color: color}
}

func ClearIndicator() InboundCommand { return InboundCommand{Kind: KindClearIndicator} }
