// Package effects keeps the per-actor list of active statuses derived from
// the frame queue. The ledger is a presentation cache: lethality is decided
// by HP, never by the effects held here.
package effects

import (
	"log/slog"
	"sync"

	"github.com/udisondev/combatplay/internal/battle/framequeue"
	"github.com/udisondev/combatplay/internal/combatlog"
)

// DefaultStackCap bounds the stacks of a single status on one actor.
const DefaultStackCap = 5

// Effect is a status currently held by an actor.
type Effect struct {
	Definition Definition `json:"definition"`
	Stacks     int        `json:"stacks"`
	Duration   int        `json:"duration"` // rounds left
}

// Ledger tracks active effects per actor, keyed by (actor, status id).
// Re-applying a status merges into the existing entry.
//
// Thread-safe: the session loop writes while renderers read.
type Ledger struct {
	mu       sync.RWMutex
	catalog  *Catalog
	stackCap int
	byActor  map[string][]*Effect
}

// NewLedger creates an empty ledger. A non-positive stackCap selects
// DefaultStackCap; a nil catalog selects the built-in definitions.
func NewLedger(catalog *Catalog, stackCap int) *Ledger {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if stackCap <= 0 {
		stackCap = DefaultStackCap
	}
	return &Ledger{
		catalog:  catalog,
		stackCap: stackCap,
		byActor:  make(map[string][]*Effect),
	}
}

// StackCap returns the configured stack cap.
func (l *Ledger) StackCap() int { return l.stackCap }

// Seed clears the ledger and loads the actors' initial statuses.
func (l *Ledger) Seed(actors []combatlog.Actor) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byActor = make(map[string][]*Effect, len(actors))
	for _, a := range actors {
		for _, s := range a.Statuses {
			l.merge(a.ID, combatlog.StatusApplication{ID: s.ID, Stacks: s.Stacks, Duration: s.Duration})
		}
	}
}

// ApplyFrame folds one queue item into the ledger: statusApplied entries of
// action frames merge, status ticks of round_end and status_tick frames
// overwrite duration and stacks, expired ticks remove the effect.
func (l *Ledger) ApplyFrame(item framequeue.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch f := item.Frame.(type) {
	case combatlog.ActionFrame:
		for _, res := range f.Results {
			for _, app := range res.StatusApplied {
				l.merge(res.TargetID, app)
			}
		}
	case combatlog.RoundEndFrame:
		l.tick(f.StatusTicks)
	case combatlog.StatusTickFrame:
		l.tick(f.Ticks)
	}
}

// Effects returns a copy of the actor's active effects in application order.
func (l *Ledger) Effects(actorID string) []Effect {
	l.mu.RLock()
	defer l.mu.RUnlock()

	list := l.byActor[actorID]
	out := make([]Effect, len(list))
	for i, e := range list {
		out[i] = *e
	}
	return out
}

// Snapshot returns a copy of every actor's active effects. Actors without
// effects are omitted.
func (l *Ledger) Snapshot() map[string][]Effect {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string][]Effect, len(l.byActor))
	for id, list := range l.byActor {
		if len(list) == 0 {
			continue
		}
		cp := make([]Effect, len(list))
		for i, e := range list {
			cp[i] = *e
		}
		out[id] = cp
	}
	return out
}

// merge must be called with mu held.
func (l *Ledger) merge(actorID string, app combatlog.StatusApplication) {
	for _, e := range l.byActor[actorID] {
		if e.Definition.ID == app.ID {
			e.Stacks = min(e.Stacks+app.Stacks, l.stackCap)
			e.Duration = max(e.Duration, app.Duration)
			return
		}
	}

	if app.Duration <= 0 {
		return
	}
	stacks := min(max(app.Stacks, 1), l.stackCap)
	l.byActor[actorID] = append(l.byActor[actorID], &Effect{
		Definition: l.catalog.Resolve(app),
		Stacks:     stacks,
		Duration:   app.Duration,
	})
}

// tick must be called with mu held.
func (l *Ledger) tick(ticks []combatlog.StatusTick) {
	for _, t := range ticks {
		list := l.byActor[t.TargetID]
		idx := -1
		for i, e := range list {
			if e.Definition.ID == t.StatusID {
				idx = i
				break
			}
		}

		gone := t.Expired || t.DurationAfter <= 0
		switch {
		case idx >= 0 && gone:
			l.byActor[t.TargetID] = append(list[:idx], list[idx+1:]...)
		case idx >= 0:
			list[idx].Duration = t.DurationAfter
			list[idx].Stacks = t.StacksBefore
		case !gone:
			slog.Debug("status tick for untracked effect",
				"actor", t.TargetID,
				"status", t.StatusID)
			l.byActor[t.TargetID] = append(list, &Effect{
				Definition: l.catalog.Resolve(combatlog.StatusApplication{ID: t.StatusID}),
				Stacks:     t.StacksBefore,
				Duration:   t.DurationAfter,
			})
		}
	}
}
