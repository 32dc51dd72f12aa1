// Package poll provides a reusable drift-corrected sampling loop for
// building measurement channels on top of a plain read function.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"skinnerbox/internal/model"
)

// ErrBadLoop marks a loop configuration that cannot run.
var ErrBadLoop = errors.New("invalid sampling loop")

// ReadFunc produces one sensor reading. It is called from the loop
// goroutine only.
type ReadFunc func() float64

// Loop samples a read function at a target rate on its own goroutine.
// Each iteration appends a timestamped sample, then sleeps the remainder
// of one period measured against the loop's own schedule, so timing
// error does not accumulate over long trials. Start resets the sample
// sequence; callers must snapshot it via Samples before the next Start.
type Loop struct {
	name string
	rate float64
	read ReadFunc

	mu      sync.Mutex
	samples []model.Sample
	stop    chan struct{}
	done    chan struct{}
}

func NewLoop(name string, rate float64, read ReadFunc) (*Loop, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadLoop)
	}
	if !(rate > 0) {
		return nil, fmt.Errorf("%w: sampling rate must be > 0, got %g", ErrBadLoop, rate)
	}
	if read == nil {
		return nil, fmt.Errorf("%w: read function is required", ErrBadLoop)
	}
	return &Loop{name: name, rate: rate, read: read}, nil
}

func (l *Loop) Name() string {
	return l.name
}

func (l *Loop) SamplingRate() float64 {
	return l.rate
}

// Start launches the sampling goroutine and returns immediately.
func (l *Loop) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	if l.stop != nil {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s is already running", ErrBadLoop, l.name)
	}
	l.samples = nil
	stop := make(chan struct{})
	done := make(chan struct{})
	l.stop = stop
	l.done = done
	l.mu.Unlock()

	go l.run(stop, done)
	return nil
}

// Stop signals the sampling goroutine and blocks until it has fully
// terminated. No sample is appended after Stop returns.
func (l *Loop) Stop() error {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()
	if stop == nil {
		return fmt.Errorf("%w: %s is not running", ErrBadLoop, l.name)
	}
	close(stop)
	<-done
	return nil
}

// Samples returns a copy of the sequence collected since the last Start.
func (l *Loop) Samples() []model.Sample {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.Sample, len(l.samples))
	copy(out, l.samples)
	return out
}

func (l *Loop) run(stop, done chan struct{}) {
	defer close(done)

	period := time.Duration(float64(time.Second) / l.rate)
	next := time.Now()
	for {
		select {
		case <-stop:
			return
		default:
		}

		value := l.read()
		l.mu.Lock()
		l.samples = append(l.samples, model.Sample{At: time.Now(), Value: value})
		l.mu.Unlock()

		next = next.Add(period)
		remaining := time.Until(next)
		if remaining <= 0 {
			// The read overran the period; realign rather than
			// bursting to pay back the deficit.
			next = time.Now()
			continue
		}
		timer := time.NewTimer(remaining)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
