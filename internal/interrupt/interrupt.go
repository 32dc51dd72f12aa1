// Package interrupt converts process signals into a cooperative stop
// flag. The flag is polled at trial boundaries only; a signal never
// unwinds a running trial.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Scope captures SIGINT and SIGTERM for its lifetime and exposes them as
// a boolean flag. Close releases the signal handler; it is safe to call
// more than once.
type Scope struct {
	ch      chan os.Signal
	tripped atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

func Open() *Scope {
	s := &Scope{
		ch:   make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(s.ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer close(s.done)
		for range s.ch {
			s.tripped.Store(true)
		}
	}()
	return s
}

// Interrupted reports whether a signal arrived (or Trip was called)
// since the scope opened.
func (s *Scope) Interrupted() bool {
	return s.tripped.Load()
}

// Trip sets the stop flag without a signal, for embedding callers and
// tests.
func (s *Scope) Trip() {
	s.tripped.Store(true)
}

// Close restores default signal delivery and waits for the watcher
// goroutine to exit. The flag keeps its value.
func (s *Scope) Close() {
	s.closeOnce.Do(func() {
		signal.Stop(s.ch)
		close(s.ch)
	})
	<-s.done
}
