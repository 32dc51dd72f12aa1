package timing

import (
	"context"
	"time"
)

// pollInterval bounds how late past a deadline a waiter may fire.
const pollInterval = 200 * time.Microsecond

// Duration converts seconds to a time.Duration.
func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// WaitUntil blocks until the wall clock reaches deadline or ctx is done.
// It never returns before deadline; past the deadline it returns within
// one poll interval.
func WaitUntil(ctx context.Context, deadline time.Time) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		time.Sleep(pollInterval)
	}
}

// Sleep pauses for the given number of seconds, returning early only if
// ctx is done.
func Sleep(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(Duration(seconds))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
