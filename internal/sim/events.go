// Package sim provides software stand-ins for rig hardware: stimulus
// and reward channels that burn real time when triggered, sensors that
// produce plausible signals, and a camera that records per-trial clips.
// They let full sessions run end to end with no hardware attached.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"skinnerbox/internal/timing"
)

// ErrBadDevice marks a simulated device configuration error.
var ErrBadDevice = errors.New("invalid simulated device")

// Tone plays a pure tone for a fixed duration. Triggering occupies the
// goroutine for the tone's length, like a blocking audio write would.
type Tone struct {
	name     string
	start    timing.Spec
	freq     float64
	duration float64
}

func NewTone(name string, start timing.Spec, freqHz, durationSec float64) (*Tone, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tone name is required", ErrBadDevice)
	}
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("%w: tone %s start: %v", ErrBadDevice, name, err)
	}
	if !(freqHz > 0) {
		return nil, fmt.Errorf("%w: tone %s frequency must be > 0, got %g", ErrBadDevice, name, freqHz)
	}
	if !(durationSec > 0) {
		return nil, fmt.Errorf("%w: tone %s duration must be > 0, got %g", ErrBadDevice, name, durationSec)
	}
	return &Tone{name: name, start: start, freq: freqHz, duration: durationSec}, nil
}

func (t *Tone) Name() string { return t.name }

func (t *Tone) AssignStartTime(rng *rand.Rand) (float64, error) {
	return t.start.Sample(rng)
}

func (t *Tone) Trigger(ctx context.Context) error {
	return timing.Sleep(ctx, t.duration)
}

// Reward opens a liquid line long enough to deliver a volume at the
// pump's flow rate. The open duration is derived once during Init.
type Reward struct {
	name     string
	start    timing.Spec
	volume   float64
	rate     float64
	duration float64
}

func NewReward(name string, start timing.Spec, volumeUL, rateULPerSec float64) (*Reward, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: reward name is required", ErrBadDevice)
	}
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("%w: reward %s start: %v", ErrBadDevice, name, err)
	}
	if !(volumeUL > 0) {
		return nil, fmt.Errorf("%w: reward %s volume must be > 0, got %g", ErrBadDevice, name, volumeUL)
	}
	if !(rateULPerSec > 0) {
		return nil, fmt.Errorf("%w: reward %s rate must be > 0, got %g", ErrBadDevice, name, rateULPerSec)
	}
	return &Reward{name: name, start: start, volume: volumeUL, rate: rateULPerSec}, nil
}

func (r *Reward) Name() string { return r.name }

func (r *Reward) Init(_ context.Context) error {
	r.duration = r.volume / r.rate
	return nil
}

// OpenDuration reports the line-open time in seconds, valid after Init.
func (r *Reward) OpenDuration() float64 { return r.duration }

func (r *Reward) AssignStartTime(rng *rand.Rand) (float64, error) {
	return r.start.Sample(rng)
}

func (r *Reward) Trigger(ctx context.Context) error {
	if r.duration == 0 {
		return fmt.Errorf("%w: reward %s triggered before Init", ErrBadDevice, r.name)
	}
	return timing.Sleep(ctx, r.duration)
}

func (r *Reward) Cleanup(_ context.Context) error {
	// Line valve closes on its own; nothing held open between sessions.
	r.duration = 0
	return nil
}

// Pulse drives a digital line high for a fixed width, for TTL sync
// marks to external acquisition systems.
type Pulse struct {
	name  string
	start timing.Spec
	width float64
}

func NewPulse(name string, start timing.Spec, widthSec float64) (*Pulse, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: pulse name is required", ErrBadDevice)
	}
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("%w: pulse %s start: %v", ErrBadDevice, name, err)
	}
	if !(widthSec > 0) {
		return nil, fmt.Errorf("%w: pulse %s width must be > 0, got %g", ErrBadDevice, name, widthSec)
	}
	return &Pulse{name: name, start: start, width: widthSec}, nil
}

func (p *Pulse) Name() string { return p.name }

func (p *Pulse) AssignStartTime(rng *rand.Rand) (float64, error) {
	return p.start.Sample(rng)
}

func (p *Pulse) Trigger(ctx context.Context) error {
	return timing.Sleep(ctx, p.width)
}
