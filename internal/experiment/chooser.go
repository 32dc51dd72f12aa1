package experiment

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"skinnerbox/internal/trial"
)

// ErrBadWeights marks a trial-type weight set that does not describe a
// probability distribution.
var ErrBadWeights = errors.New("invalid trial-type weights")

// weightTolerance bounds how far a weight set may drift from summing
// to 1 before selection is refused instead of silently mis-normalized.
const weightTolerance = 1e-6

type chooser struct {
	types []*trial.Type
	cum   []float64
}

func newChooser(types []*trial.Type) (*chooser, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: at least one trial type is required", ErrBadWeights)
	}
	sum := 0.0
	for _, t := range types {
		sum += t.Weight()
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, fmt.Errorf("%w: weights sum to %g, want 1", ErrBadWeights, sum)
	}
	cum := make([]float64, len(types))
	acc := 0.0
	for i, t := range types {
		acc += t.Weight()
		cum[i] = acc
	}
	cum[len(cum)-1] = 1
	return &chooser{types: types, cum: cum}, nil
}

func (c *chooser) pick(rng *rand.Rand) *trial.Type {
	r := rng.Float64()
	for i, edge := range c.cum {
		if r < edge {
			return c.types[i]
		}
	}
	return c.types[len(c.types)-1]
}
