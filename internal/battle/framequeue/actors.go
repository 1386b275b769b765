package framequeue

import "github.com/udisondev/combatplay/internal/combatlog"

// Actors is the read-only actor table of a combat session: the log order is
// kept for iteration, lookups go through an id index.
type Actors struct {
	list []combatlog.Actor
	byID map[string]int
}

// NewActors indexes list. The caller must not modify list afterwards.
func NewActors(list []combatlog.Actor) *Actors {
	byID := make(map[string]int, len(list))
	for i, a := range list {
		byID[a.ID] = i
	}
	return &Actors{list: list, byID: byID}
}

// Get returns the actor with the given id.
func (a *Actors) Get(id string) (combatlog.Actor, bool) {
	i, ok := a.byID[id]
	if !ok {
		return combatlog.Actor{}, false
	}
	return a.list[i], true
}

// Len returns the number of actors.
func (a *Actors) Len() int { return len(a.list) }

// All returns the actors in log order.
func (a *Actors) All() []combatlog.Actor {
	out := make([]combatlog.Actor, len(a.list))
	copy(out, a.list)
	return out
}

// IsEnemy reports whether id names a non-player actor.
func (a *Actors) IsEnemy(id string) bool {
	actor, ok := a.Get(id)
	return ok && !actor.IsPlayer
}

// FirstEnemy returns the first non-player actor in log order.
func (a *Actors) FirstEnemy() (combatlog.Actor, bool) {
	for _, actor := range a.list {
		if !actor.IsPlayer {
			return actor, true
		}
	}
	return combatlog.Actor{}, false
}

// StartingHealth returns a fresh actor id -> starting HP map.
func (a *Actors) StartingHealth() map[string]int {
	hp := make(map[string]int, len(a.list))
	for _, actor := range a.list {
		hp[actor.ID] = actor.StartHP
	}
	return hp
}
