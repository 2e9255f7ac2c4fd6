package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"still_controller/internal/models"
	"still_controller/internal/repository"
)

// Journal page sizes. A request without a limit gets the newest DefaultLogLimit events.
const (
	DefaultLogLimit = 200
	MaxLogLimit     = 2000
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	ErrInvalidLimit     = errors.New("invalid limit: must be >= 0")
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

func normalizeLimit(n int) (int, error) {
	switch {
	case n < 0:
		return 0, ErrInvalidLimit
	case n == 0:
		return DefaultLogLimit, nil
	case n > MaxLogLimit:
		return MaxLogLimit, nil
	}
	return n, nil
}

// toEventQuery validates f and turns it into a repository query.
func toEventQuery(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		From: normalizeToUTC(f.From),
		To:   normalizeToUTC(f.To),
		Type: normalizeEventType(f.Type),
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, ErrInvalidTimeRange
	}
	limit, err := normalizeLimit(f.Limit)
	if err != nil {
		return repository.EventQuery{}, err
	}
	q.Limit = limit
	return q, nil
}

// List returns the newest matching journal events, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.StillEvent, error) {
	q, err := toEventQuery(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}
