package storage

import (
	"context"
	"sort"
	"sync"

	"skinnerbox/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	sessions    map[string]model.Session
	trials      map[string][]model.Trial
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.sessions = make(map[string]model.Session)
	s.trials = make(map[string][]model.Trial)
	return nil
}

func (s *MemoryStore) SaveSession(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (model.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartedAtUTC != sessions[j].StartedAtUTC {
			return sessions[i].StartedAtUTC < sessions[j].StartedAtUTC
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (s *MemoryStore) SaveTrial(_ context.Context, trial model.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.trials[trial.SessionID]
	for i, t := range existing {
		if t.Index == trial.Index {
			existing[i] = trial
			return nil
		}
	}
	s.trials[trial.SessionID] = append(existing, trial)
	return nil
}

func (s *MemoryStore) GetTrials(_ context.Context, sessionID string) ([]model.Trial, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials, ok := s.trials[sessionID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.Trial, len(trials))
	copy(copied, trials)
	sort.Slice(copied, func(i, j int) bool { return copied[i].Index < copied[j].Index })
	return copied, true, nil
}
