package sim

import (
	"fmt"
	"math/rand"

	"skinnerbox/internal/poll"
)

// NewLickSensor builds a sampling loop producing a binary lick signal.
// Each sample is 1 with probability lickRate/samplingRate, approximating
// a Poisson lick train at lickRate licks per second. The loop's private
// generator is touched only from the loop goroutine.
func NewLickSensor(name string, samplingRate, lickRate float64, seed int64) (*poll.Loop, error) {
	if !(lickRate >= 0) || lickRate > samplingRate {
		return nil, fmt.Errorf("%w: lick rate %g outside [0, sampling rate]", ErrBadDevice, lickRate)
	}
	rng := rand.New(rand.NewSource(seed))
	p := lickRate / samplingRate
	return poll.NewLoop(name, samplingRate, func() float64 {
		if rng.Float64() < p {
			return 1
		}
		return 0
	})
}

// NewNoiseSensor builds a sampling loop producing Gaussian noise around
// a baseline, standing in for an analog channel such as a load cell.
func NewNoiseSensor(name string, samplingRate, baseline, sd float64, seed int64) (*poll.Loop, error) {
	if !(sd >= 0) {
		return nil, fmt.Errorf("%w: noise sd must be >= 0, got %g", ErrBadDevice, sd)
	}
	rng := rand.New(rand.NewSource(seed))
	return poll.NewLoop(name, samplingRate, func() float64 {
		return baseline + sd*rng.NormFloat64()
	})
}
