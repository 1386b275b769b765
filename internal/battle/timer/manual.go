package timer

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by the caller, for tests. Nothing runs until
// Fire is called.
type Manual struct {
	mu        sync.Mutex
	fn        func()
	delay     time.Duration
	stopped   bool
	scheduled int
}

// NewManual creates an idle Manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// Schedule implements Scheduler.
func (m *Manual) Schedule(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.fn = fn
	m.delay = d
	m.scheduled++
}

// Cancel implements Scheduler.
func (m *Manual) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = nil
}

// Stop implements Scheduler.
func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = nil
	m.stopped = true
}

// Pending returns the delay of the pending callback.
func (m *Manual) Pending() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay, m.fn != nil
}

// Scheduled returns how many callbacks were scheduled so far.
func (m *Manual) Scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduled
}

// Fire runs the pending callback and reports whether there was one.
func (m *Manual) Fire() bool {
	m.mu.Lock()
	fn := m.fn
	m.fn = nil
	m.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}
