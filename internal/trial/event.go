package trial

import (
	"context"
	"fmt"
	"log"
	"time"
)

// eventState tracks one event across a single trial occurrence. The
// offset is assigned by Plan on the main goroutine; the logged stamps
// and trigger error are written only by the trigger goroutine and read
// after its done channel closes.
type eventState struct {
	source Triggerable
	order  int

	offset    float64
	scheduled bool

	done        chan struct{}
	loggedStart time.Time
	loggedEnd   time.Time
	triggerErr  error
}

// fire launches the trigger on its own goroutine, stamping wall-clock
// times around the call. The caller returns immediately and must join
// via the done channel. Errors and panics are contained at the goroutine
// boundary: the trial keeps running, the end stamp stays unset, and the
// event's data for this trial is marked missing.
func (e *eventState) fire(ctx context.Context, logger *log.Logger) {
	done := make(chan struct{})
	e.done = done
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				e.triggerErr = fmt.Errorf("trigger panic: %v", r)
				logf(logger, "event %s: trigger panicked: %v", e.source.Name(), r)
			}
		}()
		e.loggedStart = time.Now()
		if err := e.source.Trigger(ctx); err != nil {
			e.triggerErr = err
			logf(logger, "event %s: trigger failed: %v", e.source.Name(), err)
			return
		}
		e.loggedEnd = time.Now()
	}()
}

func (e *eventState) reset() {
	e.offset = 0
	e.scheduled = false
	e.done = nil
	e.loggedStart = time.Time{}
	e.loggedEnd = time.Time{}
	e.triggerErr = nil
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger == nil {
		return
	}
	logger.Printf(format, args...)
}
