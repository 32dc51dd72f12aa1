package storage

import (
	"context"
	"fmt"

	"skinnerbox/internal/model"
)

// SessionRecorder buffers completed trials and writes the whole session
// to a Store on Flush. A failed Flush keeps the buffer intact so the
// caller can retry against the same or another store.
type SessionRecorder struct {
	store  Store
	buffer []model.Trial
}

func NewSessionRecorder(store Store) *SessionRecorder {
	return &SessionRecorder{store: store}
}

func (r *SessionRecorder) RecordTrial(_ context.Context, trial model.Trial) error {
	trial.SchemaVersion = CurrentSchemaVersion
	trial.CodecVersion = CurrentCodecVersion
	r.buffer = append(r.buffer, trial)
	return nil
}

func (r *SessionRecorder) Flush(ctx context.Context, session model.Session) error {
	session.SchemaVersion = CurrentSchemaVersion
	session.CodecVersion = CurrentCodecVersion
	if err := r.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	for _, trial := range r.buffer {
		if err := r.store.SaveTrial(ctx, trial); err != nil {
			return fmt.Errorf("save trial %d of session %s: %w", trial.Index, session.ID, err)
		}
	}
	r.buffer = nil
	return nil
}

// Trials exposes the buffered, not yet flushed trials.
func (r *SessionRecorder) Trials() []model.Trial {
	out := make([]model.Trial, len(r.buffer))
	copy(out, r.buffer)
	return out
}
