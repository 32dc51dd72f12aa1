package storage

import (
	"context"
	"testing"

	"skinnerbox/internal/model"
)

func versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func TestMemoryStoreSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.Session{
		VersionedRecord: versioned(),
		ID:              "s1",
		SubjectID:       "m042",
		StartedAtUTC:    "2026-08-25T10:00:00Z",
		Seed:            7,
		NTrials:         10,
		Completed:       10,
	}
	if err := store.SaveSession(ctx, input); err != nil {
		t.Fatalf("save session: %v", err)
	}

	output, ok, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted session")
	}
	if output.SubjectID != "m042" || output.Completed != 10 {
		t.Fatalf("unexpected session: %+v", output)
	}
}

func TestMemoryStoreMissingSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	_, ok, err := store.GetSession(ctx, "absent")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if ok {
		t.Fatal("expected missing session")
	}
}

func TestMemoryStoreListSessionsOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, s := range []model.Session{
		{VersionedRecord: versioned(), ID: "later", StartedAtUTC: "2026-08-25T11:00:00Z"},
		{VersionedRecord: versioned(), ID: "earlier", StartedAtUTC: "2026-08-25T09:00:00Z"},
	} {
		if err := store.SaveSession(ctx, s); err != nil {
			t.Fatalf("save session %s: %v", s.ID, err)
		}
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "earlier" || sessions[1].ID != "later" {
		t.Fatalf("unexpected order: %+v", sessions)
	}
}

func TestMemoryStoreTrialsSortedAndUpserted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, tr := range []model.Trial{
		{VersionedRecord: versioned(), SessionID: "s1", Index: 1, TypeName: "reward"},
		{VersionedRecord: versioned(), SessionID: "s1", Index: 0, TypeName: "cue"},
		{VersionedRecord: versioned(), SessionID: "s1", Index: 1, TypeName: "omission"},
	} {
		if err := store.SaveTrial(ctx, tr); err != nil {
			t.Fatalf("save trial %d: %v", tr.Index, err)
		}
	}

	trials, ok, err := store.GetTrials(ctx, "s1")
	if err != nil {
		t.Fatalf("get trials: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted trials")
	}
	if len(trials) != 2 {
		t.Fatalf("expected upsert on (session, index), got %d trials", len(trials))
	}
	if trials[0].Index != 0 || trials[1].Index != 1 {
		t.Fatalf("trials not sorted by index: %+v", trials)
	}
	if trials[1].TypeName != "omission" {
		t.Fatalf("upsert did not replace trial 1: %+v", trials[1])
	}
}

func TestMemoryStoreTrialsMissingSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	_, ok, err := store.GetTrials(ctx, "absent")
	if err != nil {
		t.Fatalf("get trials: %v", err)
	}
	if ok {
		t.Fatal("expected no trials for unknown session")
	}
}
