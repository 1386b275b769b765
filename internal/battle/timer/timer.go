// Package timer provides the single-slot scheduled callback used to pace
// playback. At most one callback is pending per scheduler; scheduling a new
// one replaces the old, and nothing fires after Stop.
package timer

import (
	"sync"
	"time"
)

// Scheduler runs at most one pending callback at a time.
type Scheduler interface {
	// Schedule replaces any pending callback with fn, run after d.
	Schedule(d time.Duration, fn func())
	// Cancel drops the pending callback, if any.
	Cancel()
	// Stop cancels the pending callback and ignores later Schedule calls.
	Stop()
}

// Timer is a Scheduler backed by time.AfterFunc. Callbacks run on their own
// goroutine; a generation counter keeps a callback whose timer was replaced
// or cancelled from running even if it already fired.
type Timer struct {
	mu      sync.Mutex
	t       *time.Timer
	gen     uint64
	stopped bool
}

// New creates an idle Timer.
func New() *Timer {
	return &Timer{}
}

// Schedule implements Scheduler.
func (s *Timer) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.cancelLocked()

	gen := s.gen
	s.t = time.AfterFunc(d, func() {
		s.mu.Lock()
		live := !s.stopped && s.gen == gen
		if live {
			s.t = nil
		}
		s.mu.Unlock()

		if live {
			fn()
		}
	})
}

// Cancel implements Scheduler.
func (s *Timer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Stop implements Scheduler.
func (s *Timer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.stopped = true
}

// Pending reports whether a callback is waiting to fire.
func (s *Timer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t != nil
}

func (s *Timer) cancelLocked() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	s.gen++
}
