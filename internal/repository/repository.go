package repository

import (
	"context"
	"database/sql"
	"time"

	"still_controller/internal/models"
)

// Authorization stores operator accounts.
type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// StateRepo keeps the most recent controller snapshot so the API has something to show
// before the first tick after a restart.
type StateRepo interface {
	Save(ctx context.Context, s models.SystemSnapshot) error
	Load(ctx context.Context) (*models.SystemSnapshot, error)
}

// EventQuery selects journal entries. Zero bounds are open; Limit <= 0 means no limit.
type EventQuery struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}

type EventRepo interface {
	Append(ctx context.Context, e models.StillEvent) error
	// List returns matching events oldest first. With a Limit, the newest Limit
	// events are kept.
	List(ctx context.Context, q EventQuery) ([]models.StillEvent, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
