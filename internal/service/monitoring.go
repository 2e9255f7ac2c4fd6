package service

import (
	"context"
	"time"

	"still_controller/internal/models"
	"still_controller/internal/repository"
)

// SnapshotSource hands out the live controller snapshot.
type SnapshotSource interface {
	Snapshot() models.SystemSnapshot
}

type MonitoringService struct {
	live      SnapshotSource
	stateRepo repository.StateRepo
	now       func() time.Time
}

func NewMonitoringService(live SnapshotSource, stateRepo repository.StateRepo) *MonitoringService {
	return &MonitoringService{live: live, stateRepo: stateRepo, now: time.Now}
}

// GetState returns the live snapshot once the loop has ticked. Before that it falls back
// to the last persisted snapshot, and then to an IDLE baseline.
func (s *MonitoringService) GetState(ctx context.Context) (models.SystemSnapshot, error) {
	if s.live != nil {
		if snap := s.live.Snapshot(); snap.Tick > 0 {
			return snap, nil
		}
	}

	if s.stateRepo != nil {
		persisted, err := s.stateRepo.Load(ctx)
		if err != nil {
			return models.SystemSnapshot{}, err
		}
		if persisted != nil {
			persisted.TakenAt = toUTC(persisted.TakenAt)
			return *persisted, nil
		}
	}
	return s.baselineState(), nil
}

// baselineState describes a controller that has never run.
func (s *MonitoringService) baselineState() models.SystemSnapshot {
	return models.BaselineSnapshot(s.now().UTC())
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
