//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"skinnerbox/internal/model"

	_ "modernc.org/sqlite"
)

// DefaultStoreKind names the backend used when none is configured.
func DefaultStoreKind() string {
	return "sqlite"
}

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, session model.Session) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeSession(session)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at_utc = excluded.started_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, session.ID, session.StartedAtUTC, session.SchemaVersion, session.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (model.Session, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Session{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, err
	}

	session, err := DecodeSession(payload)
	if err != nil {
		return model.Session{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, true, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM sessions ORDER BY started_at_utc, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		session, err := DecodeSession(payload)
		if err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) SaveTrial(ctx context.Context, trial model.Trial) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeTrial(trial)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO trials (session_id, idx, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, idx) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, trial.SessionID, trial.Index, trial.SchemaVersion, trial.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetTrials(ctx context.Context, sessionID string) ([]model.Trial, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM trials WHERE session_id = ? ORDER BY idx`, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var trials []model.Trial
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		trial, err := DecodeTrial(payload)
		if err != nil {
			return nil, false, fmt.Errorf("decode trial for session %s: %w", sessionID, err)
		}
		trials = append(trials, trial)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(trials) == 0 {
		return nil, false, nil
	}
	return trials, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trials (
			session_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (session_id, idx)
		);
	`)
	return err
}
