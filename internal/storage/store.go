package storage

import (
	"context"

	"skinnerbox/internal/model"
)

// Store defines persistence operations for sessions and their trials.
type Store interface {
	Init(ctx context.Context) error
	SaveSession(ctx context.Context, session model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, bool, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	SaveTrial(ctx context.Context, trial model.Trial) error
	GetTrials(ctx context.Context, sessionID string) ([]model.Trial, bool, error)
}
