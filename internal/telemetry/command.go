package telemetry

import (
	"errors"
	"fmt"

	"still_controller/internal/models"
)

var (
	ErrMalformedCommand = errors.New("telemetry: malformed command")
	ErrUnknownCommand   = errors.New("telemetry: unknown command")
)

// wireCommand keeps every field loose so validation, not decoding, decides what is
// malformed.
type wireCommand struct {
	Type  string `json:"type"`
	Phase string `json:"phase,omitempty"`
	Duty  *int   `json:"duty,omitempty"`
	Color string `json:"color,omitempty"`
}

// EncodeCommand renders cmd in codec for the inbound queue.
func EncodeCommand(codec Codec, cmd models.InboundCommand) ([]byte, error) {
	w := wireCommand{Type: string(cmd.Kind), Phase: string(cmd.Phase), Color: cmd.Color}
	if cmd.Kind == models.KindSetManualDuty {
		d := cmd.Duty
		w.Duty = &d
	}
	return codec.Marshal(w)
}

// DecodeCommand parses and validates an inbound payload. Unknown kinds return
// ErrUnknownCommand so newer senders never break older controllers.
func DecodeCommand(codec Codec, data []byte) (models.InboundCommand, error) {
	var w wireCommand
	if err := codec.Unmarshal(data, &w); err != nil {
		return models.InboundCommand{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	kind := models.CommandKind(w.Type)
	if !kind.Known() {
		return models.InboundCommand{}, fmt.Errorf("%w: %q", ErrUnknownCommand, w.Type)
	}

	cmd := models.InboundCommand{Kind: kind}
	switch kind {
	case models.KindSetPhase:
		p, ok := models.ParsePhase(w.Phase)
		if !ok {
			return models.InboundCommand{}, fmt.Errorf("%w: phase %q", ErrMalformedCommand, w.Phase)
		}
		cmd.Phase = p
	case models.KindSetManualDuty:
		if w.Duty == nil || *w.Duty < 0 || *w.Duty > 100 {
			return models.InboundCommand{}, fmt.Errorf("%w: duty must be 0..100", ErrMalformedCommand)
		}
		cmd.Duty = *w.Duty
	case models.KindSetIndicator:
		color, ok := models.ParseIndicator(w.Color)
		if !ok {
			return models.InboundCommand{}, fmt.Errorf("%w: color %q", ErrMalformedCommand, w.Color)
		}
		cmd.Color = color
	}
	return cmd, nil
}
