// Package supervisor owns the control loop. Each tick runs one pipeline in a fixed order:
//
//	measure -> safety pre-check -> phase step -> safety post-check -> actuate
//	-> snapshot -> publish -> poll one command -> handle it
//
// All controller state is touched from the goroutine that calls Tick or Run. Other
// goroutines only ever see the immutable snapshot returned by Snapshot.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"still_controller/internal/actuator"
	"still_controller/internal/logger"
	"still_controller/internal/models"
	"still_controller/internal/phase"
	"still_controller/internal/safety"
	"still_controller/internal/sensor"
	"still_controller/internal/telemetry"
)

const DefaultPeriod = time.Second

var ErrManualDutyRange = errors.New("supervisor: manual duty outside 0..100")

// Journal receives events worth keeping. Record must not block.
type Journal interface {
	Record(e models.StillEvent)
}

type nopJournal struct{}

func (nopJournal) Record(models.StillEvent) {}

// Deps are the collaborators the supervisor drives. Journal and Log may be nil.
type Deps struct {
	Reader    *sensor.Reader
	Monitor   safety.Monitor
	Phase     *phase.Controller
	Actuator  *actuator.Actuator
	Telemetry *telemetry.Publisher
	Journal   Journal
	Log       *logger.Logger
}

// Options tune scheduling.
type Options struct {
	Period time.Duration
	Now    func() time.Time
}

// Supervisor schedules ticks and escalates faults.
type Supervisor struct {
	reader    *sensor.Reader
	monitor   safety.Monitor
	phase     *phase.Controller
	actuator  *actuator.Actuator
	telemetry *telemetry.Publisher
	journal   Journal
	log       *logger.Logger

	period  time.Duration
	now     func() time.Time
	started time.Time

	tick      uint64
	overruns  uint64
	rejected  uint64
	manual    *int
	indicator string // operator colour, "" follows the phase
	reading   models.Reading
	stopped   atomic.Bool

	snap atomic.Pointer[models.SystemSnapshot]
}

// New wires a supervisor and publishes a baseline snapshot so Snapshot is valid before
// the first tick.
func New(d Deps, opts Options) *Supervisor {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if d.Journal == nil {
		d.Journal = nopJournal{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}

	s := &Supervisor{
		reader:    d.Reader,
		monitor:   d.Monitor,
		phase:     d.Phase,
		actuator:  d.Actuator,
		telemetry: d.Telemetry,
		journal:   d.Journal,
		log:       d.Log,
		period:    opts.Period,
		now:       opts.Now,
	}
	s.started = s.now()
	s.reading = models.InvalidReading(s.started)
	base := models.BaselineSnapshot(s.started)
	s.snap.Store(&base)
	return s
}

// Snapshot returns the most recent published state.
func (s *Supervisor) Snapshot() models.SystemSnapshot {
	return *s.snap.Load()
}

// Stopped reports whether a shutdown has completed. Safe to call from any goroutine.
func (s *Supervisor) Stopped() bool {
	return s.stopped.Load()
}

// Run ticks every period until a SHUTDOWN command arrives or ctx is cancelled. A tick
// that overruns its period is counted and the next one starts immediately. Cancellation
// goes through the same safe shutdown as the command and returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Infow("supervisor_started", "period", s.period.String())

	timer := time.NewTimer(s.period)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			s.shutdown("context cancelled")
			return err
		}

		start := s.now()
		if !s.Tick(ctx) {
			return nil
		}
		elapsed := s.now().Sub(start)

		if elapsed > s.period {
			s.overruns++
			s.log.Warnw("supervisor_tick_overrun", "tick", s.tick, "elapsed", elapsed.String())
			continue
		}

		timer.Reset(s.period - elapsed)
		select {
		case <-ctx.Done():
			s.shutdown("context cancelled")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tick runs one full pipeline. It returns false once the supervisor has shut down.
func (s *Supervisor) Tick(ctx context.Context) bool {
	if s.stopped.Load() {
		return false
	}
	s.tick++

	reading := s.reader.Measure(ctx)
	now := s.now()
	streak := s.reader.Failures()
	s.reading = reading
	if streak > 0 {
		s.log.Debugw("sensor_measure_failed", "tick", s.tick, "streak", streak, "err", s.reader.LastError())
	}

	// pre-check: the reading alone can fault the controller before a duty is proposed
	if v := s.monitor.Check(reading, streak, models.Off(models.SourcePhase)); v.Faulted() {
		s.fault(v.Fault, now)
	}

	decision := s.phase.Step(reading, now)
	if decision.Transition != nil {
		s.recordTransition(decision.Transition)
	}
	proposal := decision.Command
	// manual duty never drives the heater blind
	if s.manual != nil && reading.Valid && !proposal.IsTerminal() {
		proposal = models.ActuatorCommand{Duty: *s.manual, Source: models.SourceManual}
	}

	verdict := s.monitor.Check(reading, streak, proposal)
	if verdict.Faulted() {
		s.fault(verdict.Fault, now)
	}
	cmd := verdict.Command

	if _, err := s.actuator.Apply(cmd); err != nil {
		s.log.Errorw("actuator_apply_failed", "tick", s.tick, "duty", cmd.Duty, "err", err)
		s.fault(models.FaultActuator, now)
		cmd = models.Off(models.SourceSafety)
		if _, err := s.actuator.Apply(cmd); err != nil {
			s.log.Errorw("actuator_safe_off_failed", "tick", s.tick, "err", err)
		}
	}

	snap := s.buildSnapshot(now, cmd, false)
	s.snap.Store(&snap)
	s.telemetry.Publish(snap)

	if in, ok := s.telemetry.Poll(); ok {
		s.handle(in, now)
	}
	return !s.stopped.Load()
}

func (s *Supervisor) buildSnapshot(now time.Time, cmd models.ActuatorCommand, shuttingDown bool) models.SystemSnapshot {
	st := s.phase.State()
	var manual *int
	if s.manual != nil {
		d := *s.manual
		manual = &d
	}
	indicator, override := st.Phase.Indicator(), false
	// a fault always shows its own colour
	if s.indicator != "" && st.Phase != models.PhaseFault {
		indicator, override = s.indicator, true
	}
	return models.SystemSnapshot{
		Tick:           s.tick,
		Phase:          st.Phase,
		PhaseEnteredAt: st.EnteredAt,
		Reading:        s.reading,
		Command:        cmd,
		AppliedDuty:    s.actuator.Last().Duty,
		FaultReason:    st.Fault,
		ManualDuty:     manual,
		TrendCPerMin:   s.reader.Trend(),
		Uptime:         now.Sub(s.started),
		Indicator:      indicator,
		IndicatorSet:   override,
		ShuttingDown:   shuttingDown,
		Counters: models.Counters{
			Overruns:          s.overruns,
			SensorFailures:    s.reader.Failures(),
			MalformedCommands: s.telemetry.MalformedCommands(),
			RejectedCommands:  s.rejected,
			TransportErrors:   s.telemetry.TransportErrors(),
		},
		TakenAt: now,
	}
}

func (s *Supervisor) fault(reason models.FaultReason, now time.Time) {
	tr := s.phase.Fault(reason, now)
	if tr == nil {
		return
	}
	s.manual = nil
	s.log.Errorw("still_fault", "tick", s.tick, "reason", string(reason), "from", string(tr.From))
	s.journal.Record(models.StillEvent{
		OccurredAt:  now,
		Type:        models.EventFault,
		Description: fmt.Sprintf("fault: %s", reason),
		Metadata:    map[string]any{"from": tr.From, "reason": reason, "tick": s.tick},
	})
}

func (s *Supervisor) recordTransition(tr *phase.Transition) {
	s.log.Infow("phase_changed", "tick", s.tick, "from", string(tr.From), "to", string(tr.To), "cause", tr.Cause)
	s.journal.Record(models.StillEvent{
		OccurredAt:  tr.At,
		Type:        models.EventPhaseChange,
		Description: fmt.Sprintf("%s -> %s (%s)", tr.From, tr.To, tr.Cause),
		Metadata:    map[string]any{"from": tr.From, "to": tr.To, "cause": tr.Cause},
	})
}

func (s *Supervisor) handle(in models.InboundCommand, now time.Time) {
	var (
		tr  *phase.Transition
		err error
	)

	switch in.Kind {
	case models.KindSetPhase:
		if tr, err = s.phase.Request(in.Phase, now); err == nil {
			s.manual = nil
		}
	case models.KindReset:
		if tr, err = s.phase.Reset(s.reading, now); err == nil {
			s.manual = nil
		}
	case models.KindSetManualDuty:
		switch {
		case s.phase.State().Phase == models.PhaseFault:
			err = phase.ErrFaulted
		case in.Duty < 0 || in.Duty > 100:
			err = fmt.Errorf("%w: %d", ErrManualDutyRange, in.Duty)
		default:
			d := in.Duty
			s.manual = &d
		}
	case models.KindClearManual:
		s.manual = nil
	case models.KindSetIndicator:
		if color, ok := models.ParseIndicator(in.Color); ok {
			s.indicator = color
		} else {
			err = fmt.Errorf("invalid indicator colour %q", in.Color)
		}
	case models.KindClearIndicator:
		s.indicator = ""
	case models.KindShutdown:
		s.recordCommand(in, now)
		s.shutdown("shutdown command")
		return
	default:
		err = fmt.Errorf("unhandled command kind %q", in.Kind)
	}

	if err != nil {
		s.rejected++
		s.log.Warnw("command_rejected", "tick", s.tick, "kind", string(in.Kind), "err", err)
		s.journal.Record(models.StillEvent{
			OccurredAt:  now,
			Type:        models.EventCommandRejected,
			Description: err.Error(),
			Metadata:    commandMeta(in),
		})
		return
	}

	s.recordCommand(in, now)
	if tr != nil {
		s.recordTransition(tr)
	}
}

func (s *Supervisor) recordCommand(in models.InboundCommand, now time.Time) {
	s.log.Infow("command_accepted", "tick", s.tick, "kind", string(in.Kind))
	s.journal.Record(models.StillEvent{
		OccurredAt:  now,
		Type:        models.EventCommand,
		Description: string(in.Kind),
		Metadata:    commandMeta(in),
	})
}

func commandMeta(in models.InboundCommand) map[string]any {
	m := map[string]any{"kind": in.Kind}
	switch in.Kind {
	case models.KindSetPhase:
		m["phase"] = in.Phase
	case models.KindSetManualDuty:
		m["duty"] = in.Duty
	case models.KindSetIndicator:
		m["color"] = in.Color
	}
	return m
}

// shutdown forces the heater off, publishes a final snapshot and stops the loop.
func (s *Supervisor) shutdown(cause string) {
	if s.stopped.Load() {
		return
	}
	now := s.now()
	cmd := models.Off(models.SourceSafety)
	if _, err := s.actuator.Apply(cmd); err != nil {
		s.log.Errorw("actuator_safe_off_failed", "tick", s.tick, "err", err)
	}
	s.manual = nil

	snap := s.buildSnapshot(now, cmd, true)
	s.snap.Store(&snap)
	s.telemetry.Publish(snap)
	s.stopped.Store(true)

	s.log.Infow("supervisor_stopped", "tick", s.tick, "cause", cause, "phase", string(snap.Phase))
	s.journal.Record(models.StillEvent{
		OccurredAt:  now,
		Type:        models.EventShutdown,
		Description: cause,
		Metadata:    map[string]any{"tick": s.tick, "phase": snap.Phase},
	})
}
