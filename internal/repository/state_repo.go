package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"still_controller/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	stillStateRowID = 1

	insertOrUpdateStateSQL = `
		INSERT INTO still_state (id, tick, phase, fault, temp_c, duty, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tick=excluded.tick,
			phase=excluded.phase,
			fault=excluded.fault,
			temp_c=excluded.temp_c,
			duty=excluded.duty,
			snapshot=excluded.snapshot,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT snapshot, updated_at
		FROM still_state WHERE id=?
	`
)

// Save upserts the single still_state row (id always 1). The searchable columns are
// denormalised from the snapshot; the snapshot itself is stored as JSON.
func (r *StateSQLite) Save(ctx context.Context, s models.SystemSnapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ts := s.TakenAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	var temp *float64
	if s.Reading.Valid {
		t := s.Reading.Temperature
		temp = &t
	}

	_, err = r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		stillStateRowID,
		int64(s.Tick),
		string(s.Phase),
		string(s.FaultReason),
		temp,
		s.AppliedDuty,
		string(payload),
		ts,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the persisted snapshot, or nil when nothing was saved yet.
func (r *StateSQLite) Load(ctx context.Context) (*models.SystemSnapshot, error) {
	var (
		payload   string
		updatedAt time.Time
	)
	err := r.db.QueryRowContext(ctx, selectStateSQL, stillStateRowID).Scan(&payload, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var s models.SystemSnapshot
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.TakenAt.IsZero() {
		s.TakenAt = updatedAt
	}
	s.TakenAt = s.TakenAt.UTC()
	return &s, nil
}
