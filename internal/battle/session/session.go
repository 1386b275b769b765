// Package session runs one combat playback on its own event loop. The player,
// ledger and dispatcher of a session are touched only by that loop; timers,
// renderers and host controls talk to it through messages.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/combatplay/internal/battle/dispatch"
	"github.com/udisondev/combatplay/internal/battle/effects"
	"github.com/udisondev/combatplay/internal/battle/framequeue"
	"github.com/udisondev/combatplay/internal/battle/outcome"
	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/battle/timer"
	"github.com/udisondev/combatplay/internal/combatlog"
)

// DefaultMountDelay is the loading tick before the first item is shown.
const DefaultMountDelay = 16 * time.Millisecond

var (
	ErrClosed  = errors.New("session closed")
	ErrRunning = errors.New("session already running")
)

// IsRetryable reports whether err means the log itself is unusable, so the
// host should refetch it rather than retry playback.
func IsRetryable(err error) bool {
	return errors.Is(err, combatlog.ErrMalformedLog) ||
		errors.Is(err, player.ErrEmptyQueue) ||
		errors.Is(err, combatlog.ErrDigestMismatch)
}

type msgKind int

const (
	msgMount msgKind = iota
	msgComplete
	msgSpeed
	msgSkip
)

type message struct {
	kind   msgKind
	itemID string
	speed  player.Speed
}

// Option configures a Session.
type Option func(*Session)

// WithScheduler replaces the wall-clock timer, e.g. with timer.Manual in tests.
func WithScheduler(s timer.Scheduler) Option {
	return func(sess *Session) { sess.sched = s }
}

// WithMountDelay sets the loading tick.
func WithMountDelay(d time.Duration) Option {
	return func(sess *Session) { sess.mountDelay = d }
}

// WithDefaultSpeed sets the starting speed.
func WithDefaultSpeed(s player.Speed) Option {
	return func(sess *Session) { sess.speed = s }
}

// WithLedger sets the catalog and stack cap of the session's effects ledger.
func WithLedger(catalog *effects.Catalog, stackCap int) Option {
	return func(sess *Session) { sess.ledger = effects.NewLedger(catalog, stackCap) }
}

// WithOutcome sets the callback invoked once with the session outcome.
func WithOutcome(cb outcome.Callback) Option {
	return func(sess *Session) { sess.onOutcome = cb }
}

// WithObserver receives every player event, on the session loop.
func WithObserver(fn func(player.Event)) Option {
	return func(sess *Session) { sess.observer = fn }
}

// Session plays one combat log.
type Session struct {
	id         string
	player     *player.Player
	dispatcher *dispatch.Dispatcher
	resolver   *outcome.Resolver

	sched      timer.Scheduler
	mountDelay time.Duration
	speed      player.Speed
	ledger     *effects.Ledger
	onOutcome  outcome.Callback
	observer   func(player.Event)

	mu      sync.Mutex
	pending []message     // posted, not yet handled; FIFO
	wake    chan struct{} // signals pending is non-empty

	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool

	// loop-owned
	summary *outcome.Summary
}

// New validates l and prepares a session. Errors from a bad log match
// combatlog.ErrMalformedLog or player.ErrEmptyQueue; see IsRetryable.
func New(l *combatlog.CombatLog, renderers dispatch.Renderers, opts ...Option) (*Session, error) {
	q, actors, err := framequeue.Adapt(l)
	if err != nil {
		return nil, fmt.Errorf("adapting combat log %s: %w", l.ID, err)
	}

	s := &Session{
		id:         l.ID,
		mountDelay: DefaultMountDelay,
		speed:      player.Speed1x,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sched == nil {
		s.sched = timer.New()
	}
	if s.ledger == nil {
		s.ledger = effects.NewLedger(nil, 0)
	}

	s.player, err = player.New(q, actors,
		player.WithLedger(s.ledger),
		player.WithDefaultSpeed(s.speed))
	if err != nil {
		return nil, fmt.Errorf("creating player for %s: %w", l.ID, err)
	}
	s.dispatcher, err = dispatch.New(renderers)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher for %s: %w", l.ID, err)
	}
	s.resolver, err = outcome.NewResolver(l, s.onOutcome)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the combat log id.
func (s *Session) ID() string { return s.id }

// Actors returns the session's actor table. It is immutable.
func (s *Session) Actors() *framequeue.Actors { return s.player.Actors() }

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run plays the log until the outcome is emitted, ctx is cancelled or Close
// is called. The session is torn down when Run returns.
func (s *Session) Run(ctx context.Context) (outcome.Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return outcome.Summary{}, ErrRunning
	}
	defer s.Close()

	slog.Debug("combat session started", "log", s.id, "items", len(s.player.Queue()))
	s.apply(s.player.Start())
	s.sched.Schedule(s.mountDelay, func() { s.post(message{kind: msgMount}) })

	for {
		select {
		case <-ctx.Done():
			return outcome.Summary{}, ctx.Err()
		case <-s.done:
			return outcome.Summary{}, ErrClosed
		case <-s.wake:
			for _, m := range s.drain() {
				s.handle(m)
				if s.summary != nil {
					return *s.summary, nil
				}
			}
		}
	}
}

// Complete acknowledges that the renderer finished showing itemID.
// Acknowledgements for any item other than the current one are ignored.
func (s *Session) Complete(itemID string) {
	s.post(message{kind: msgComplete, itemID: itemID})
}

// SetSpeed changes the speed of subsequent items. The item on screen keeps
// its timing.
func (s *Session) SetSpeed(sp player.Speed) error {
	if !sp.Valid() {
		return fmt.Errorf("%w: %d", player.ErrInvalidSpeed, sp)
	}
	s.post(message{kind: msgSpeed, speed: sp})
	return nil
}

// Skip jumps to the end of the log.
func (s *Session) Skip() {
	s.post(message{kind: msgSkip})
}

// Close stops all pending timers. Nothing mutates the session afterwards.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sched.Stop()
		slog.Debug("combat session closed", "log", s.id)
	})
}

// post queues m for the loop in call order. It never blocks: renderers may
// complete synchronously from inside the loop.
func (s *Session) post(m message) {
	select {
	case <-s.done:
		return
	default:
	}

	s.mu.Lock()
	s.pending = append(s.pending, m)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) drain() []message {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *Session) handle(m message) {
	select {
	case <-s.done:
		return
	default:
	}

	switch m.kind {
	case msgMount:
		s.apply(s.player.Mount())

	case msgComplete:
		cur, ok := s.player.Current()
		if !ok || cur.ID != m.itemID {
			slog.Debug("stale renderer completion", "log", s.id, "item", m.itemID)
			return
		}
		if s.player.State() == player.Ended {
			if cur.Type == combatlog.FrameEndBattle {
				s.resolve()
			}
			return
		}
		s.apply(s.player.Next())

	case msgSpeed:
		events, err := s.player.SetSpeed(m.speed)
		if err != nil {
			slog.Warn("speed change rejected", "log", s.id, "err", err)
			return
		}
		s.apply(events)

	case msgSkip:
		if s.player.State() == player.Ended {
			return
		}
		s.sched.Cancel()
		s.apply(s.player.SkipToEnd())
	}
}

// apply forwards events and presents the new current item, if any.
func (s *Session) apply(events []player.Event) {
	if !s.notify(events) {
		return
	}
	s.notify(s.dispatcher.Present(s.player, s.sched.Schedule, s.Complete))
}

func (s *Session) notify(events []player.Event) (itemChanged bool) {
	for _, e := range events {
		if s.observer != nil {
			s.observer(e)
		}
		switch ev := e.(type) {
		case player.ItemChanged:
			itemChanged = true
		case player.Completed:
			slog.Debug("combat playback completed", "log", s.id, "reason", ev.Reason)
			// Without an end_battle item on screen nothing would acknowledge it.
			if ev.Reason == player.EndExhausted {
				s.resolve()
			}
		}
	}
	return itemChanged
}

func (s *Session) resolve() {
	sum, first := s.resolver.Resolve(s.player)
	if first {
		s.summary = &sum
	}
}
