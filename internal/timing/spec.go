package timing

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrBadSpec marks a time spec that is malformed or cannot produce a
// value within its bounds.
var ErrBadSpec = errors.New("invalid time spec")

// maxDraws bounds rejection sampling so a spec whose bounds exclude
// effectively all of the distribution's mass fails instead of spinning.
const maxDraws = 10000

type Kind string

const (
	KindFixed       Kind = "fixed"
	KindUniform     Kind = "uniform"
	KindNormal      Kind = "normal"
	KindExponential Kind = "exponential"
)

// Spec describes a fixed time value or a bounded distribution to draw
// one from. All values are in seconds.
type Spec struct {
	Kind  Kind
	Value float64 // fixed value
	Mean  float64 // normal mean
	SD    float64 // normal standard deviation
	Rate  float64 // exponential rate (1/mean)
	Min   float64
	Max   float64
}

// Fixed returns a spec that always samples to seconds.
func Fixed(seconds float64) Spec {
	return Spec{Kind: KindFixed, Value: seconds}
}

// Uniform returns a spec drawing uniformly from the open interval
// (min, max).
func Uniform(min, max float64) Spec {
	return Spec{Kind: KindUniform, Min: min, Max: max}
}

// Normal returns a spec drawing from N(mean, sd) restricted to the open
// interval (min, max).
func Normal(mean, sd, min, max float64) Spec {
	return Spec{Kind: KindNormal, Mean: mean, SD: sd, Min: min, Max: max}
}

// Exponential returns a spec drawing from Exp(rate) restricted to the
// open interval (min, max).
func Exponential(rate, min, max float64) Spec {
	return Spec{Kind: KindExponential, Rate: rate, Min: min, Max: max}
}

func (s Spec) Validate() error {
	switch s.Kind {
	case KindFixed:
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return fmt.Errorf("%w: fixed value must be finite, got %g", ErrBadSpec, s.Value)
		}
		return nil
	case KindUniform:
		if math.IsNaN(s.Min) || math.IsNaN(s.Max) || math.IsInf(s.Min, 0) || math.IsInf(s.Max, 0) {
			return fmt.Errorf("%w: uniform bounds must be finite", ErrBadSpec)
		}
	case KindNormal:
		if !(s.SD > 0) {
			return fmt.Errorf("%w: normal sd must be > 0, got %g", ErrBadSpec, s.SD)
		}
	case KindExponential:
		if !(s.Rate > 0) {
			return fmt.Errorf("%w: exponential rate must be > 0, got %g", ErrBadSpec, s.Rate)
		}
	case "":
		return fmt.Errorf("%w: kind is required", ErrBadSpec)
	default:
		return fmt.Errorf("%w: unrecognized kind %q", ErrBadSpec, s.Kind)
	}
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) {
		return fmt.Errorf("%w: bounds must not be NaN", ErrBadSpec)
	}
	if !(s.Min < s.Max) {
		return fmt.Errorf("%w: bounds must satisfy min < max, got [%g, %g]", ErrBadSpec, s.Min, s.Max)
	}
	return nil
}

// Sample draws one value from the spec. Fixed specs return their value
// unchanged. Distribution specs redraw until the value lies strictly
// inside (Min, Max), failing after a fixed attempt budget rather than
// looping forever.
func (s Spec) Sample(rng *rand.Rand) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if s.Kind == KindFixed {
		return s.Value, nil
	}
	if rng == nil {
		return 0, fmt.Errorf("%w: sampling a %s spec requires a random source", ErrBadSpec, s.Kind)
	}
	for i := 0; i < maxDraws; i++ {
		var v float64
		switch s.Kind {
		case KindUniform:
			v = s.Min + rng.Float64()*(s.Max-s.Min)
		case KindNormal:
			v = rng.NormFloat64()*s.SD + s.Mean
		case KindExponential:
			v = rng.ExpFloat64() / s.Rate
		}
		if v > s.Min && v < s.Max {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: no draw inside (%g, %g) after %d attempts", ErrBadSpec, s.Min, s.Max, maxDraws)
}
