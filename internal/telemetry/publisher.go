// Package telemetry serialises snapshots onto the transport and drains inbound commands.
// Telemetry is best-effort: nothing here may fail or stall the control loop.
package telemetry

import (
	"bytes"
	"errors"

	"still_controller/internal/logger"
	"still_controller/internal/models"
)

// Transport is the link collaborator. Both calls must be non-blocking or bounded.
type Transport interface {
	TrySend(frame []byte) error
	TryRecv() ([]byte, bool)
}

// Frame types carried in the envelope.
const (
	FrameSnapshot = "snapshot"
)

// Envelope wraps every outbound frame.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Publisher owns the outbound encoding and the inbound command decoding.
type Publisher struct {
	transport Transport
	codec     Codec
	log       *logger.Logger

	transportErrors   uint64
	malformedCommands uint64
}

// NewPublisher returns a publisher writing codec frames to transport.
func NewPublisher(transport Transport, codec Codec, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{transport: transport, codec: codec, log: log}
}

// Codec returns the wire codec in use.
func (p *Publisher) Codec() Codec {
	return p.codec
}

// Publish sends one snapshot frame. Failures are logged and counted, never returned.
func (p *Publisher) Publish(s models.SystemSnapshot) {
	frame, err := p.codec.Marshal(Envelope{Type: FrameSnapshot, Data: s})
	if err != nil {
		p.transportErrors++
		p.log.Errorw("telemetry_encode_failed", "err", err, "tick", s.Tick)
		return
	}
	if err := p.transport.TrySend(frame); err != nil {
		p.transportErrors++
		p.log.Warnw("telemetry_send_failed", "err", err, "tick", s.Tick)
	}
}

// Poll consumes at most one inbound payload. Malformed and unknown payloads are dropped
// and counted.
func (p *Publisher) Poll() (models.InboundCommand, bool) {
	raw, ok := p.transport.TryRecv()
	if !ok {
		return models.InboundCommand{}, false
	}

	cmd, err := DecodeCommand(p.inboundCodec(raw), raw)
	if err != nil {
		p.malformedCommands++
		if errors.Is(err, ErrUnknownCommand) {
			p.log.Infow("telemetry_unknown_command_ignored", "err", err)
		} else {
			p.log.Warnw("telemetry_malformed_command", "err", err, "bytes", len(raw))
		}
		return models.InboundCommand{}, false
	}
	return cmd, true
}

// inboundCodec picks JSON for payloads that open with a JSON object, so websocket text
// frames stay valid under a binary codec. A msgpack map never starts with '{'.
func (p *Publisher) inboundCodec(raw []byte) Codec {
	if p.codec.Name() == CodecJSON {
		return p.codec
	}
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return JSON{}
	}
	return p.codec
}

// TransportErrors counts failed publishes.
func (p *Publisher) TransportErrors() uint64 {
	return p.transportErrors
}

// MalformedCommands counts dropped inbound payloads.
func (p *Publisher) MalformedCommands() uint64 {
	return p.malformedCommands
}
