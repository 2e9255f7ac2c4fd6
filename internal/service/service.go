package service

import (
	"context"

	"still_controller/internal/models"
	"still_controller/internal/repository"
	"still_controller/internal/telemetry"
)

// Authorization manages operator accounts and bearer tokens.
type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Control turns operator actions into inbound commands for the control loop. It never
// touches controller state directly.
type Control interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	Shutdown(ctx context.Context) error
	SetManualDuty(ctx context.Context, duty int) error
	ClearManual(ctx context.Context) error
	SetIndicator(ctx context.Context, r, g, b uint8) error
	ClearIndicator(ctx context.Context) error
}

// Monitoring exposes the read-only controller snapshot.
type Monitoring interface {
	GetState(ctx context.Context) (models.SystemSnapshot, error)
}

// EventLog exposes the journal with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.StillEvent, error)
}

// Deps are the runtime collaborators the services need beyond the repositories.
type Deps struct {
	Snapshots SnapshotSource
	Commands  CommandSink
	Codec     telemetry.Codec
	Auth      AuthConfig
}

type Service struct {
	Control
	Monitoring
	EventLog
	Authorization
}

func NewService(repos *repository.Repository, d Deps) *Service {
	return &Service{
		Control:       NewControlService(d.Commands, d.Codec),
		Monitoring:    NewMonitoringService(d.Snapshots, repos.StateRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, d.Auth),
	}
}
