package trial

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"skinnerbox/internal/model"
	"skinnerbox/internal/timing"
)

// ErrBadTrialType marks a trial type that is misconfigured.
var ErrBadTrialType = errors.New("invalid trial type")

// Type is a named, weighted bundle of events plus the measurements the
// experiment assigns to it. One Type runs at most one trial at a time;
// its per-occurrence fields are overwritten on every Plan/Run pair.
type Type struct {
	name   string
	weight float64
	endPad float64

	events       []*eventState
	names        map[string]struct{}
	measurements []Pollable

	// transient, valid for the current occurrence only
	schedule []*eventState
}

func New(name string, weight float64) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadTrialType)
	}
	if !(weight > 0) || math.IsInf(weight, 0) {
		return nil, fmt.Errorf("%w: %s needs a positive finite weight, got %g", ErrBadTrialType, name, weight)
	}
	return &Type{
		name:   name,
		weight: weight,
		names:  make(map[string]struct{}),
	}, nil
}

func (t *Type) Name() string {
	return t.name
}

func (t *Type) Weight() float64 {
	return t.weight
}

// SetEndPad adds a pause, in seconds, after the last event has finished
// and measurements have stopped, before the trial returns.
func (t *Type) SetEndPad(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: %s end pad must be >= 0 and finite, got %g", ErrBadTrialType, t.name, seconds)
	}
	t.endPad = seconds
	return nil
}

// AddEvent registers an owned event. Event names must be unique within
// the type; declaration order breaks scheduling ties.
func (t *Type) AddEvent(event Triggerable) error {
	if event == nil {
		return fmt.Errorf("%w: %s got a nil event", ErrBadTrialType, t.name)
	}
	name := event.Name()
	if name == "" {
		return fmt.Errorf("%w: %s got an event without a name", ErrBadTrialType, t.name)
	}
	if _, exists := t.names[name]; exists {
		return fmt.Errorf("%w: %s already has an event named %s", ErrBadTrialType, t.name, name)
	}
	t.names[name] = struct{}{}
	t.events = append(t.events, &eventState{source: event, order: len(t.events)})
	return nil
}

// AttachMeasurement shares a measurement with this type by reference.
// Attaching the same measurement again is a no-op.
func (t *Type) AttachMeasurement(m Pollable) {
	if m == nil {
		return
	}
	for _, existing := range t.measurements {
		if existing.Name() == m.Name() {
			return
		}
	}
	t.measurements = append(t.measurements, m)
}

// EventSources returns the owned events in declaration order.
func (t *Type) EventSources() []Triggerable {
	out := make([]Triggerable, 0, len(t.events))
	for _, e := range t.events {
		out = append(out, e.source)
	}
	return out
}

// Plan prepares the upcoming occurrence: it runs each event's optional
// Init, assigns each event exactly one start offset, and orders the
// schedule by ascending offset with declaration order breaking ties.
func (t *Type) Plan(ctx context.Context, rng *rand.Rand) error {
	for _, e := range t.events {
		e.reset()
		if init, ok := e.source.(Initializer); ok {
			if err := init.Init(ctx); err != nil {
				return fmt.Errorf("init event %s: %w", e.source.Name(), err)
			}
		}
		offset, err := e.source.AssignStartTime(rng)
		if err != nil {
			return fmt.Errorf("assign start time for event %s: %w", e.source.Name(), err)
		}
		if offset < 0 || math.IsNaN(offset) || math.IsInf(offset, 0) {
			return fmt.Errorf("%w: event %s produced start offset %g", ErrBadTrialType, e.source.Name(), offset)
		}
		e.offset = offset
		e.scheduled = true
	}
	t.schedule = append(t.schedule[:0], t.events...)
	sort.SliceStable(t.schedule, func(i, j int) bool {
		return t.schedule[i].offset < t.schedule[j].offset
	})
	return nil
}

// Run executes one occurrence against the absolute trial start time:
// measurements on, events fired in planned order at start+offset, all
// trigger goroutines joined, measurements off, optional end pad. Events
// with overlapping schedules run concurrently with no mutual exclusion;
// keeping them off the same hardware line is the paradigm author's
// responsibility. Zero events is a legal bare-ITI trial.
func (t *Type) Run(ctx context.Context, start time.Time, logger *log.Logger) (Outcome, error) {
	for _, e := range t.events {
		if !e.scheduled {
			return Outcome{}, fmt.Errorf("%w: %s was run without a plan", ErrBadTrialType, t.name)
		}
	}

	started := make([]Pollable, 0, len(t.measurements))
	stopAll := func() error {
		var firstErr error
		for _, m := range started {
			if err := m.Stop(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("stop measurement %s: %w", m.Name(), err)
			}
		}
		return firstErr
	}
	for _, m := range t.measurements {
		if err := m.Start(ctx); err != nil {
			_ = stopAll()
			return Outcome{}, fmt.Errorf("start measurement %s: %w", m.Name(), err)
		}
		started = append(started, m)
	}

	var waitErr error
	for _, e := range t.schedule {
		if waitErr = timing.WaitUntil(ctx, start.Add(timing.Duration(e.offset))); waitErr != nil {
			break
		}
		e.fire(ctx, logger)
	}

	// The trial cannot complete before its slowest trigger finishes.
	for _, e := range t.schedule {
		if e.done != nil {
			<-e.done
		}
	}
	stopErr := stopAll()

	if waitErr != nil {
		return Outcome{}, waitErr
	}
	if stopErr != nil {
		return Outcome{}, stopErr
	}
	if t.endPad > 0 {
		if err := timing.Sleep(ctx, t.endPad); err != nil {
			return Outcome{}, err
		}
	}
	return t.outcome(start), nil
}

// Outcome is the observed timing of one completed occurrence, normalized
// to the trial's start time.
type Outcome struct {
	Events []model.EventRecord
	Traces []model.Trace
}

func (t *Type) outcome(start time.Time) Outcome {
	events := make([]model.EventRecord, 0, len(t.events))
	for _, e := range t.events {
		record := model.EventRecord{
			Name:         e.source.Name(),
			PlannedStart: e.offset,
			LoggedStart:  e.loggedStart.Sub(start).Seconds(),
		}
		if e.triggerErr != nil {
			record.Error = e.triggerErr.Error()
		} else {
			end := e.loggedEnd.Sub(start).Seconds()
			record.LoggedEnd = &end
		}
		events = append(events, record)
	}

	traces := make([]model.Trace, 0, len(t.measurements))
	for _, m := range t.measurements {
		samples := m.Samples()
		trace := model.Trace{
			Name:         m.Name(),
			SamplingRate: m.SamplingRate(),
			T:            make([]float64, 0, len(samples)),
			V:            make([]float64, 0, len(samples)),
		}
		for _, sample := range samples {
			trace.T = append(trace.T, sample.At.Sub(start).Seconds())
			trace.V = append(trace.V, sample.Value)
		}
		traces = append(traces, trace)
	}
	return Outcome{Events: events, Traces: traces}
}
