// Package journal persists controller events and the latest snapshot off the control
// loop. Record never blocks; a full queue drops the event and counts it.
package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"still_controller/internal/logger"
	"still_controller/internal/models"
)

const (
	DefaultQueueSize    = 64
	DefaultPersistEvery = 5 * time.Second
	drainTimeout        = 2 * time.Second
)

// EventStore is the event side of the repository.
type EventStore interface {
	Append(ctx context.Context, e models.StillEvent) error
}

// StateStore is the snapshot side of the repository.
type StateStore interface {
	Save(ctx context.Context, s models.SystemSnapshot) error
}

// SnapshotSource is anything that can hand out the latest snapshot, usually the supervisor.
type SnapshotSource interface {
	Snapshot() models.SystemSnapshot
}

// Recorder is the asynchronous journal.
type Recorder struct {
	events EventStore
	state  StateStore
	log    *logger.Logger
	now    func() time.Time

	queue   chan models.StillEvent
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewRecorder returns a recorder with a queue of queueSize events. state may be nil when
// snapshots should not be persisted.
func NewRecorder(events EventStore, state StateStore, log *logger.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{
		events: events,
		state:  state,
		log:    log,
		now:    time.Now,
		queue:  make(chan models.StillEvent, queueSize),
	}
}

// Record queues e for persistence. It fills EventID and OccurredAt when empty.
func (r *Recorder) Record(e models.StillEvent) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped counts events lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Written counts events the store accepted.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Run writes queued events until ctx is done, and saves src's snapshot every persistEvery
// when src is set. On exit it drains what is queued and saves one last snapshot.
func (r *Recorder) Run(ctx context.Context, src SnapshotSource, persistEvery time.Duration) {
	if persistEvery <= 0 {
		persistEvery = DefaultPersistEvery
	}
	t := time.NewTicker(persistEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.drain(src)
			return
		case e := <-r.queue:
			r.write(ctx, e)
		case <-t.C:
			r.persist(ctx, src)
		}
	}
}

func (r *Recorder) drain(src SnapshotSource) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		default:
			r.persist(ctx, src)
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e models.StillEvent) {
	if err := r.events.Append(ctx, e); err != nil {
		r.log.Errorw("journal_append_failed", "err", err, "type", e.Type, "event_id", e.EventID)
		return
	}
	r.written.Add(1)
}

func (r *Recorder) persist(ctx context.Context, src SnapshotSource) {
	if src == nil || r.state == nil {
		return
	}
	s := src.Snapshot()
	if err := r.state.Save(ctx, s); err != nil {
		r.log.Errorw("journal_snapshot_save_failed", "err", err, "tick", s.Tick)
	}
}
