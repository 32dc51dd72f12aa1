package experiment

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"

	"skinnerbox/internal/interrupt"
	"skinnerbox/internal/model"
	"skinnerbox/internal/poll"
	"skinnerbox/internal/timing"
	"skinnerbox/internal/trial"
)

type memRecorder struct {
	trials   []model.Trial
	session  model.Session
	flushed  bool
	flushErr error
}

func (r *memRecorder) RecordTrial(_ context.Context, t model.Trial) error {
	r.trials = append(r.trials, t)
	return nil
}

func (r *memRecorder) Flush(_ context.Context, s model.Session) error {
	if r.flushErr != nil {
		return r.flushErr
	}
	r.session = s
	r.flushed = true
	return nil
}

type cleanupEvent struct {
	name     string
	cleanups atomic.Int32
}

func (c *cleanupEvent) Name() string { return c.name }

func (c *cleanupEvent) AssignStartTime(*rand.Rand) (float64, error) { return 0, nil }

func (c *cleanupEvent) Trigger(context.Context) error { return nil }

func (c *cleanupEvent) Cleanup(context.Context) error {
	c.cleanups.Add(1)
	return nil
}

type fakeVideo struct {
	starts []int
	stops  int
}

func (v *fakeVideo) StartRecording(trialIndex int) error {
	v.starts = append(v.starts, trialIndex)
	return nil
}

func (v *fakeVideo) StopRecording() error {
	v.stops++
	return nil
}

// trippingModule trips the interruption scope once a target number of
// trials has been observed.
type trippingModule struct {
	scope *interrupt.Scope
	after int
	seen  int
}

func (m *trippingModule) Name() string { return "tripper" }

func (m *trippingModule) Start(context.Context) error { return nil }

func (m *trippingModule) Stop(context.Context) error { return nil }

func (m *trippingModule) ObserveTrial(model.Trial) {
	m.seen++
	if m.seen == m.after {
		m.scope.Trip()
	}
}

func newExperiment(t *testing.T, nTrials int, seed int64) *Experiment {
	t.Helper()
	exp, err := New(Config{
		NTrials:   nTrials,
		ITI:       timing.Fixed(0.001),
		Seed:      seed,
		SubjectID: "m042",
	})
	if err != nil {
		t.Fatalf("new experiment: %v", err)
	}
	return exp
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{NTrials: 0, ITI: timing.Fixed(1)}); !errors.Is(err, ErrBadConfig) {
		t.Fatalf("expected ErrBadConfig for zero trials, got %v", err)
	}
	if _, err := New(Config{NTrials: 5, ITI: timing.Spec{Kind: "bogus"}}); !errors.Is(err, ErrBadConfig) {
		t.Fatalf("expected ErrBadConfig for bad iti, got %v", err)
	}
}

func TestRunRejectsUnknownComponents(t *testing.T) {
	exp := newExperiment(t, 1, 1)
	rec := &memRecorder{}
	_, err := exp.Run(context.Background(), rec, newType(t, "a", 1), "not a component")
	if !errors.Is(err, ErrBadComponent) {
		t.Fatalf("expected ErrBadComponent, got %v", err)
	}
	_, err = exp.Run(context.Background(), rec, newType(t, "a", 1), nil)
	if !errors.Is(err, ErrBadComponent) {
		t.Fatalf("expected ErrBadComponent for nil component, got %v", err)
	}
}

func TestRunRejectsDuplicateTypeNames(t *testing.T) {
	exp := newExperiment(t, 1, 1)
	_, err := exp.Run(context.Background(), &memRecorder{}, newType(t, "a", 0.5), newType(t, "a", 0.5))
	if !errors.Is(err, ErrBadComponent) {
		t.Fatalf("expected ErrBadComponent for duplicate type names, got %v", err)
	}
}

func TestRunSurfacesBadWeightsBeforeFirstTrial(t *testing.T) {
	exp := newExperiment(t, 1, 1)
	_, err := exp.Run(context.Background(), &memRecorder{}, newType(t, "a", 0.4), newType(t, "b", 0.4))
	if !errors.Is(err, ErrBadWeights) {
		t.Fatalf("expected ErrBadWeights, got %v", err)
	}
}

func TestRunCompletesConfiguredTrials(t *testing.T) {
	exp := newExperiment(t, 5, 21)
	rec := &memRecorder{}
	video := &fakeVideo{}
	session, err := exp.Run(context.Background(), rec, newType(t, "bare", 1), video)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if session.Completed != 5 || session.Interrupted {
		t.Fatalf("session completed=%d interrupted=%v, want 5/false", session.Completed, session.Interrupted)
	}
	if len(rec.trials) != 5 {
		t.Fatalf("recorded %d trials, want 5", len(rec.trials))
	}
	if !rec.flushed {
		t.Fatal("recorder was not flushed")
	}
	for i, tr := range rec.trials {
		if tr.Index != i {
			t.Fatalf("trial %d has index %d", i, tr.Index)
		}
		if tr.End < tr.Start {
			t.Fatalf("trial %d ends (%.4f) before it starts (%.4f)", i, tr.End, tr.Start)
		}
		if tr.SessionID != session.ID {
			t.Fatalf("trial %d carries session %s, want %s", i, tr.SessionID, session.ID)
		}
	}
	if len(video.starts) != 5 || video.stops != 5 {
		t.Fatalf("video recorded %d starts / %d stops, want 5/5", len(video.starts), video.stops)
	}
}

// Interrupting during trial 3 of a 10-trial run leaves exactly 3
// persisted trials and no partial 4th.
func TestRunHonorsInterruptionAtTrialBoundary(t *testing.T) {
	exp := newExperiment(t, 10, 33)
	scope := interrupt.Open()
	defer scope.Close()
	exp.UseScope(scope)

	rec := &memRecorder{}
	tripper := &trippingModule{scope: scope, after: 3}
	session, err := exp.Run(context.Background(), rec, newType(t, "bare", 1), tripper)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.trials) != 3 {
		t.Fatalf("persisted %d trials, want exactly 3", len(rec.trials))
	}
	if !session.Interrupted {
		t.Fatal("session not marked interrupted")
	}
	if session.Completed != 3 {
		t.Fatalf("session completed=%d, want 3", session.Completed)
	}
	if !rec.flushed {
		t.Fatal("interrupted session was not flushed")
	}
}

// Two trial types at p=[0.7, 0.3] with zero events: observed frequencies
// over 1000 trials stay within sampling tolerance.
func TestRunSelectionFrequenciesConverge(t *testing.T) {
	exp, err := New(Config{NTrials: 1000, ITI: timing.Fixed(0), Seed: 77})
	if err != nil {
		t.Fatalf("new experiment: %v", err)
	}
	rec := &memRecorder{}
	if _, err := exp.Run(context.Background(), rec, newType(t, "common", 0.7), newType(t, "rare", 0.3)); err != nil {
		t.Fatalf("run: %v", err)
	}
	counts := make(map[string]int)
	for _, tr := range rec.trials {
		counts[tr.TypeName]++
	}
	common := float64(counts["common"]) / 1000
	if common < 0.65 || common > 0.75 {
		t.Fatalf("common selected with frequency %.3f, want within [0.65, 0.75]", common)
	}
	if counts["common"]+counts["rare"] != 1000 {
		t.Fatalf("selection produced unknown types: %v", counts)
	}
}

func TestRunCleansUpSharedEventsExactlyOnce(t *testing.T) {
	exp := newExperiment(t, 2, 13)
	shared := &cleanupEvent{name: "house-light"}
	a := newType(t, "a", 0.5)
	b := newType(t, "b", 0.5)
	if err := a.AddEvent(shared); err != nil {
		t.Fatalf("add event: %v", err)
	}
	if err := b.AddEvent(shared); err != nil {
		t.Fatalf("add event: %v", err)
	}
	if _, err := exp.Run(context.Background(), &memRecorder{}, a, b); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := shared.cleanups.Load(); got != 1 {
		t.Fatalf("shared event cleaned up %d times, want exactly 1", got)
	}
}

func TestRunSurfacesFlushFailure(t *testing.T) {
	exp := newExperiment(t, 1, 3)
	rec := &memRecorder{flushErr: errors.New("disk full")}
	_, err := exp.Run(context.Background(), rec, newType(t, "bare", 1))
	if err == nil || !errors.Is(err, rec.flushErr) {
		t.Fatalf("expected flush failure to surface, got %v", err)
	}
	if len(rec.trials) != 1 {
		t.Fatal("recorded trials must remain available after a failed flush")
	}
}

func TestRunAttachesEveryMeasurementToEveryType(t *testing.T) {
	exp := newExperiment(t, 2, 8)
	loop := newTestLoop(t, "licks", 200)
	rec := &memRecorder{}
	if _, err := exp.Run(context.Background(), rec, newType(t, "a", 0.5), newType(t, "b", 0.5), loop); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, tr := range rec.trials {
		if len(tr.Traces) != 1 || tr.Traces[0].Name != "licks" {
			t.Fatalf("trial %d traces = %+v, want one licks trace", tr.Index, tr.Traces)
		}
	}
}

func TestRunCanceledContextStillFlushes(t *testing.T) {
	exp := newExperiment(t, 100, 4)
	rec := &memRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session, err := exp.Run(ctx, rec, newType(t, "bare", 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !rec.flushed {
		t.Fatal("canceled session was not flushed")
	}
	if !session.Interrupted {
		t.Fatal("canceled session not marked interrupted")
	}
}

func newTestLoop(t *testing.T, name string, rate float64) trial.Pollable {
	t.Helper()
	loop, err := poll.NewLoop(name, rate, func() float64 { return 0 })
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	return loop
}
