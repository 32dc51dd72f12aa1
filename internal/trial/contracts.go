// Package trial implements the per-trial scheduling engine: planning
// stochastic event offsets, firing events against an absolute wall-clock
// schedule on dedicated goroutines, and running continuous measurements
// for the trial's duration.
package trial

import (
	"context"
	"math/rand"

	"skinnerbox/internal/model"
)

// Triggerable is the contract for a discrete timed action fired once per
// trial. AssignStartTime draws the trial-relative start offset in
// seconds; Trigger performs the action and may block for its duration.
// The random source is only ever passed in on the main goroutine.
type Triggerable interface {
	Name() string
	AssignStartTime(rng *rand.Rand) (float64, error)
	Trigger(ctx context.Context) error
}

// Initializer is an optional Triggerable capability run at the start of
// planning, before the offset is assigned.
type Initializer interface {
	Init(ctx context.Context) error
}

// Cleaner is an optional Triggerable capability run exactly once at
// experiment teardown. Implementations must be idempotent.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// Pollable is the contract for a continuous background sampler. Start
// must return immediately with the sampling loop running on its own
// goroutine; Stop must block until that loop has fully terminated, after
// which no sample is appended; Samples snapshots the sequence collected
// since the last Start. The sequence is overwritten, not appended, on
// each Start.
type Pollable interface {
	Name() string
	SamplingRate() float64
	Start(ctx context.Context) error
	Stop() error
	Samples() []model.Sample
}
