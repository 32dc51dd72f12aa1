// Package experiment drives a full behavioral session: weighted
// trial-type selection, the trial loop with inter-trial intervals,
// cooperative interruption at trial boundaries, and finalization.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"skinnerbox/internal/interrupt"
	"skinnerbox/internal/model"
	"skinnerbox/internal/timing"
	"skinnerbox/internal/trial"
)

var (
	// ErrBadConfig marks an experiment configuration error surfaced at
	// setup rather than mid-session.
	ErrBadConfig = errors.New("invalid experiment configuration")
	// ErrBadComponent marks a Run argument that is none of the
	// recognized collaborator kinds.
	ErrBadComponent = errors.New("invalid run component")
)

// Recorder is the persistence collaborator. It receives each completed
// trial in order and flushes the whole session at the end.
// Implementations must keep handed-off trials available for retry if
// Flush fails.
type Recorder interface {
	RecordTrial(ctx context.Context, trial model.Trial) error
	Flush(ctx context.Context, session model.Session) error
}

// VideoRecorder is the optional per-trial recording collaborator. Its
// absence is tolerated; its failures are logged, not fatal.
type VideoRecorder interface {
	StartRecording(trialIndex int) error
	StopRecording() error
}

// SupportModule runs alongside the session, started before the first
// trial and stopped after finalization.
type SupportModule interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TrialObserver is an optional SupportModule capability notified after
// each trial is recorded.
type TrialObserver interface {
	ObserveTrial(trial model.Trial)
}

type Config struct {
	NTrials   int
	ITI       timing.Spec
	Seed      int64
	SessionID string
	SubjectID string
	Condition string
	Operator  string
	Logger    *log.Logger
}

type Experiment struct {
	cfg   Config
	rng   *rand.Rand
	scope *interrupt.Scope
}

func New(cfg Config) (*Experiment, error) {
	if cfg.NTrials <= 0 {
		return nil, fmt.Errorf("%w: n_trials must be > 0, got %d", ErrBadConfig, cfg.NTrials)
	}
	if err := cfg.ITI.Validate(); err != nil {
		return nil, fmt.Errorf("%w: iti: %v", ErrBadConfig, err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	return &Experiment{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// UseScope makes Run poll an externally owned interruption scope instead
// of opening its own, for embedding callers that manage signals
// themselves.
func (e *Experiment) UseScope(scope *interrupt.Scope) {
	e.scope = scope
}

type runSet struct {
	types        []*trial.Type
	measurements []trial.Pollable
	video        VideoRecorder
	modules      []SupportModule
}

// classify sorts Run components by capability. An argument that is none
// of the recognized kinds is a configuration error, not a silently
// ignored one.
func classify(components []any) (runSet, error) {
	var set runSet
	typeNames := make(map[string]struct{})
	measurementNames := make(map[string]struct{})
	for i, component := range components {
		switch v := component.(type) {
		case *trial.Type:
			if _, exists := typeNames[v.Name()]; exists {
				return runSet{}, fmt.Errorf("%w: duplicate trial type %s", ErrBadComponent, v.Name())
			}
			typeNames[v.Name()] = struct{}{}
			set.types = append(set.types, v)
		case trial.Pollable:
			if _, exists := measurementNames[v.Name()]; exists {
				return runSet{}, fmt.Errorf("%w: duplicate measurement %s", ErrBadComponent, v.Name())
			}
			measurementNames[v.Name()] = struct{}{}
			set.measurements = append(set.measurements, v)
		case VideoRecorder:
			if set.video != nil {
				return runSet{}, fmt.Errorf("%w: more than one video recorder", ErrBadComponent)
			}
			set.video = v
		case SupportModule:
			set.modules = append(set.modules, v)
		case nil:
			return runSet{}, fmt.Errorf("%w: component %d is nil", ErrBadComponent, i)
		default:
			return runSet{}, fmt.Errorf("%w: component %d (%T) is not a trial type, measurement, video recorder or support module", ErrBadComponent, i, component)
		}
	}
	return set, nil
}

// Run executes the session: it classifies the components, assigns every
// measurement to every trial type, then loops up to NTrials times
// selecting a type by weighted random choice, running it, and handing
// the normalized result to the recorder. Interruption is honored only at
// trial boundaries; the current trial always completes and no partial
// trial is ever persisted. Finalization flushes the recorder and runs
// every event's optional cleanup exactly once.
func (e *Experiment) Run(ctx context.Context, recorder Recorder, components ...any) (model.Session, error) {
	if recorder == nil {
		return model.Session{}, fmt.Errorf("%w: recorder is required", ErrBadConfig)
	}
	set, err := classify(components)
	if err != nil {
		return model.Session{}, err
	}
	chooser, err := newChooser(set.types)
	if err != nil {
		return model.Session{}, err
	}
	for _, tt := range set.types {
		for _, m := range set.measurements {
			tt.AttachMeasurement(m)
		}
	}

	started := make([]SupportModule, 0, len(set.modules))
	stopModules := func(ctx context.Context) {
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(ctx); err != nil {
				e.logf("support module %s: stop failed: %v", started[i].Name(), err)
			}
		}
	}
	for _, module := range set.modules {
		if err := module.Start(ctx); err != nil {
			stopModules(ctx)
			return model.Session{}, fmt.Errorf("start support module %s: %w", module.Name(), err)
		}
		started = append(started, module)
	}

	scope := e.scope
	if scope == nil {
		scope = interrupt.Open()
		defer scope.Close()
	}

	session := model.Session{
		ID:           e.cfg.SessionID,
		SubjectID:    e.cfg.SubjectID,
		Condition:    e.cfg.Condition,
		Operator:     e.cfg.Operator,
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Seed:         e.cfg.Seed,
		NTrials:      e.cfg.NTrials,
	}
	startAbs := time.Now()

	completed := 0
	interrupted := false
	var ctxErr error
	for i := 0; i < e.cfg.NTrials; i++ {
		if scope.Interrupted() {
			interrupted = true
			break
		}
		if err := ctx.Err(); err != nil {
			interrupted = true
			ctxErr = err
			break
		}

		tt := chooser.pick(e.rng)
		if err := tt.Plan(ctx, e.rng); err != nil {
			stopModules(context.WithoutCancel(ctx))
			return session, fmt.Errorf("plan trial %d (%s): %w", i, tt.Name(), err)
		}

		if set.video != nil {
			if err := set.video.StartRecording(i); err != nil {
				e.logf("video: start recording trial %d failed: %v", i, err)
			}
		}
		trialStart := time.Now()
		outcome, runErr := tt.Run(ctx, trialStart, e.cfg.Logger)
		trialEnd := time.Now()
		if set.video != nil {
			if err := set.video.StopRecording(); err != nil {
				e.logf("video: stop recording trial %d failed: %v", i, err)
			}
		}
		if runErr != nil {
			if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
				// The aborted trial is discarded, never persisted.
				interrupted = true
				ctxErr = runErr
				break
			}
			stopModules(context.WithoutCancel(ctx))
			return session, fmt.Errorf("trial %d (%s): %w", i, tt.Name(), runErr)
		}

		record := model.Trial{
			SessionID: session.ID,
			Index:     i,
			TypeName:  tt.Name(),
			Start:     trialStart.Sub(startAbs).Seconds(),
			End:       trialEnd.Sub(startAbs).Seconds(),
			Events:    outcome.Events,
			Traces:    outcome.Traces,
		}
		if err := recorder.RecordTrial(ctx, record); err != nil {
			stopModules(context.WithoutCancel(ctx))
			return session, fmt.Errorf("record trial %d: %w", i, err)
		}
		for _, module := range started {
			if observer, ok := module.(TrialObserver); ok {
				observer.ObserveTrial(record)
			}
		}
		completed++

		if completed < e.cfg.NTrials {
			iti, err := e.cfg.ITI.Sample(e.rng)
			if err != nil {
				stopModules(context.WithoutCancel(ctx))
				return session, fmt.Errorf("sample iti: %w", err)
			}
			if err := timing.Sleep(ctx, iti); err != nil {
				interrupted = true
				ctxErr = err
				break
			}
		}
	}

	session.Completed = completed
	session.Interrupted = interrupted

	// Finalize even when the context fell: collected data must survive a
	// shutdown for retry/export.
	finalizeCtx := context.WithoutCancel(ctx)
	flushErr := recorder.Flush(finalizeCtx, session)
	e.cleanupEvents(finalizeCtx, set.types)
	stopModules(finalizeCtx)

	if flushErr != nil {
		return session, fmt.Errorf("flush session %s: %w", session.ID, flushErr)
	}
	return session, ctxErr
}

// cleanupEvents runs every distinct event's optional cleanup exactly
// once, tolerating individual failures.
func (e *Experiment) cleanupEvents(ctx context.Context, types []*trial.Type) {
	seen := make(map[trial.Triggerable]struct{})
	for _, tt := range types {
		for _, event := range tt.EventSources() {
			if _, done := seen[event]; done {
				continue
			}
			seen[event] = struct{}{}
			cleaner, ok := event.(trial.Cleaner)
			if !ok {
				continue
			}
			if err := cleaner.Cleanup(ctx); err != nil {
				e.logf("event %s: cleanup failed: %v", event.Name(), err)
			}
		}
	}
}

func (e *Experiment) logf(format string, args ...any) {
	if e.cfg.Logger == nil {
		return
	}
	e.cfg.Logger.Printf(format, args...)
}
