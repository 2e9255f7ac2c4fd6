package service

import (
	"context"
	"errors"
	"fmt"

	"still_controller/internal/models"
	"still_controller/internal/telemetry"
	"still_controller/internal/transport"
)

// CommandSink is the producer side of the inbound command queue.
type CommandSink interface {
	Enqueue(payload []byte) error
}

var (
	ErrInvalidDuty = errors.New("invalid duty: must be within 0..100")
	ErrBusy        = errors.New("controller busy: command queue full")
)

// ControlService encodes operator actions in the telemetry codec and queues them for the
// control loop. Acceptance is decided by the loop; a nil error only means "queued".
type ControlService struct {
	sink  CommandSink
	codec telemetry.Codec
}

func NewControlService(sink CommandSink, codec telemetry.Codec) *ControlService {
	if codec == nil {
		codec = telemetry.JSON{}
	}
	return &ControlService{sink: sink, codec: codec}
}

// Start requests IDLE -> HEATING.
func (s *ControlService) Start(ctx context.Context) error {
	return s.submit(ctx, models.SetPhase(models.PhaseHeating))
}

// Stop requests a controlled cooldown.
func (s *ControlService) Stop(ctx context.Context) error {
	return s.submit(ctx, models.SetPhase(models.PhaseCooldown))
}

// Reset requests leaving FAULT.
func (s *ControlService) Reset(ctx context.Context) error {
	return s.submit(ctx, models.Reset())
}

// Shutdown requests a safe process shutdown.
func (s *ControlService) Shutdown(ctx context.Context) error {
	return s.submit(ctx, models.Shutdown())
}

func (s *ControlService) SetManualDuty(ctx context.Context, duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidDuty, duty)
	}
	return s.submit(ctx, models.SetManualDuty(duty))
}

func (s *ControlService) ClearManual(ctx context.Context) error {
	return s.submit(ctx, models.ClearManual())
}

// SetIndicator overrides the phase colour of the status LED until cleared.
func (s *ControlService) SetIndicator(ctx context.Context, r, g, b uint8) error {
	return s.submit(ctx, models.SetIndicator(models.IndicatorColor(r, g, b)))
}

func (s *ControlService) ClearIndicator(ctx context.Context) error {
	return s.submit(ctx, models.ClearIndicator())
}

func (s *ControlService) submit(ctx context.Context, cmd models.InboundCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := telemetry.EncodeCommand(s.codec, cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Kind, err)
	}
	if err := s.sink.Enqueue(payload); err != nil {
		if errors.Is(err, transport.ErrQueueFull) || errors.Is(err, transport.ErrClosed) {
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
		return fmt.Errorf("enqueue %s: %w", cmd.Kind, err)
	}
	return nil
}
