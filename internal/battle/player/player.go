// Package player implements the playback controller: a state machine that
// walks the frame queue one item at a time and keeps the derived health and
// effects in step with it.
//
// Player is synchronous and not safe for concurrent use; the session loop
// owns it. Every operation goes through one transition function and returns
// the events it produced, in order.
package player

import (
	"fmt"
	"log/slog"

	"github.com/udisondev/combatplay/internal/battle/effects"
	"github.com/udisondev/combatplay/internal/battle/framequeue"
	"github.com/udisondev/combatplay/internal/combatlog"
)

type command int

const (
	cmdStart command = iota
	cmdMount
	cmdNext
	cmdSkip
	cmdReset
	cmdSpeed
)

func (c command) String() string {
	return [...]string{"start", "mount", "next", "skip", "reset", "speed"}[c]
}

// playbackState is everything a transition may change.
type playbackState struct {
	state     State
	index     int
	speed     Speed
	health    map[string]int
	killed    map[string]struct{}
	completed bool
	skipped   bool
}

// Player is the playback controller for one combat session.
type Player struct {
	queue        framequeue.Queue
	actors       *framequeue.Actors
	ledger       *effects.Ledger
	defaultSpeed Speed

	st playbackState
}

// Option configures a Player.
type Option func(*Player)

// WithLedger uses l for derived effects instead of a default ledger.
func WithLedger(l *effects.Ledger) Option {
	return func(p *Player) { p.ledger = l }
}

// WithDefaultSpeed sets the speed used at construction and after Reset.
// Invalid speeds are ignored.
func WithDefaultSpeed(s Speed) Option {
	return func(p *Player) {
		if s.Valid() {
			p.defaultSpeed = s
		}
	}
}

// New creates an idle Player over q. It fails with ErrEmptyQueue when q has
// no items, so playback never starts on nothing.
func New(q framequeue.Queue, actors *framequeue.Actors, opts ...Option) (*Player, error) {
	if len(q) == 0 {
		return nil, ErrEmptyQueue
	}
	if actors == nil {
		return nil, fmt.Errorf("creating player: nil actors")
	}

	p := &Player{
		queue:        q,
		actors:       actors,
		defaultSpeed: Speed1x,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ledger == nil {
		p.ledger = effects.NewLedger(nil, 0)
	}
	p.resetState()
	return p, nil
}

// Start moves Idle to Loading.
func (p *Player) Start() []Event {
	ev, _ := p.transition(cmdStart, 0)
	return ev
}

// Mount moves Loading to Playing and makes the first item current.
func (p *Player) Mount() []Event {
	ev, _ := p.transition(cmdMount, 0)
	return ev
}

// Next advances to the following item. Past the last item the player ends.
// It is a no-op outside Playing.
func (p *Player) Next() []Event {
	ev, _ := p.transition(cmdNext, 0)
	return ev
}

// SkipToEnd jumps to the last item and ends playback. Health and effects are
// recomputed from the whole queue in one pass. No-op once Ended.
func (p *Player) SkipToEnd() []Event {
	ev, _ := p.transition(cmdSkip, 0)
	return ev
}

// Reset returns to Idle with the index, speed and derived state at defaults.
func (p *Player) Reset() []Event {
	ev, _ := p.transition(cmdReset, 0)
	return ev
}

// SetSpeed changes the speed multiplier for subsequent items.
func (p *Player) SetSpeed(s Speed) ([]Event, error) {
	return p.transition(cmdSpeed, s)
}

// transition is the only place playbackState changes.
func (p *Player) transition(cmd command, speed Speed) ([]Event, error) {
	var events []Event
	from := p.st.state

	switch cmd {
	case cmdStart:
		if from != Idle {
			return nil, nil
		}
		p.st.state = Loading
		events = append(events, StateChanged{From: from, To: Loading})

	case cmdMount:
		if from != Loading {
			return nil, nil
		}
		p.st.state = Playing
		events = append(events, StateChanged{From: from, To: Playing})
		events = p.enter(0, events)

	case cmdNext:
		if from != Playing {
			return nil, nil
		}
		if p.st.index+1 >= len(p.queue) {
			events = p.end(EndExhausted, events)
			break
		}
		events = p.enter(p.st.index+1, events)

	case cmdSkip:
		if from == Ended {
			return nil, nil
		}
		last := len(p.queue) - 1
		p.st.index = last
		p.st.health = FoldHealth(p.queue, p.actors)
		p.st.killed = p.allKills()
		p.ledger.Seed(p.actors.All())
		for _, it := range p.queue {
			p.ledger.ApplyFrame(it)
		}
		p.st.skipped = true
		events = append(events, ItemChanged{Item: p.queue[last]})
		events = p.end(EndSkipped, events)

	case cmdReset:
		p.resetState()
		if from != Idle {
			events = append(events, StateChanged{From: from, To: Idle})
		}

	case cmdSpeed:
		if !speed.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrInvalidSpeed, speed)
		}
		if speed == p.st.speed {
			return nil, nil
		}
		p.st.speed = speed
		events = append(events, SpeedChanged{Speed: speed})
	}

	slog.Debug("playback transition",
		"cmd", cmd,
		"from", from,
		"to", p.st.state,
		"index", p.st.index)
	return events, nil
}

// enter makes item i current and folds it into the derived state. The
// end_battle item ends playback immediately: nothing follows it.
func (p *Player) enter(i int, events []Event) []Event {
	it := p.queue[i]
	p.st.index = i

	for id, hp := range it.HPAfter {
		p.st.health[id] = hp
	}
	for _, id := range it.Kills() {
		if p.actors.IsEnemy(id) {
			p.st.killed[id] = struct{}{}
		}
	}
	for id := range p.st.killed {
		p.st.health[id] = 0
	}
	p.ledger.ApplyFrame(it)

	events = append(events, ItemChanged{Item: it})
	if it.Type == combatlog.FrameEndBattle {
		events = p.end(EndBattleReached, events)
	}
	return events
}

func (p *Player) end(reason EndReason, events []Event) []Event {
	if p.st.state != Ended {
		events = append(events, StateChanged{From: p.st.state, To: Ended})
		p.st.state = Ended
	}
	if !p.st.completed {
		p.st.completed = true
		events = append(events, Completed{Reason: reason})
	}
	return events
}

func (p *Player) resetState() {
	p.st = playbackState{
		state:  Idle,
		speed:  p.defaultSpeed,
		health: p.actors.StartingHealth(),
		killed: make(map[string]struct{}),
	}
	p.ledger.Seed(p.actors.All())
}

func (p *Player) allKills() map[string]struct{} {
	killed := make(map[string]struct{})
	for _, it := range p.queue {
		for _, id := range it.Kills() {
			if p.actors.IsEnemy(id) {
				killed[id] = struct{}{}
			}
		}
	}
	return killed
}

// State returns the lifecycle state.
func (p *Player) State() State { return p.st.state }

// Index returns the current queue index.
func (p *Player) Index() int { return p.st.index }

// Speed returns the current speed multiplier.
func (p *Player) Speed() Speed { return p.st.speed }

// Skipped reports whether the current run ended through SkipToEnd.
func (p *Player) Skipped() bool { return p.st.skipped }

// Current returns the current item once playback has left Loading.
func (p *Player) Current() (framequeue.Item, bool) {
	if p.st.state == Idle || p.st.state == Loading {
		return framequeue.Item{}, false
	}
	return p.queue[p.st.index], true
}

// Queue returns the frame queue.
func (p *Player) Queue() framequeue.Queue { return p.queue }

// Actors returns the actor table.
func (p *Player) Actors() *framequeue.Actors { return p.actors }

// Ledger returns the effects ledger fed by this player.
func (p *Player) Ledger() *effects.Ledger { return p.ledger }

// HP returns the current derived HP of an actor.
func (p *Player) HP(actorID string) int { return p.st.health[actorID] }

// IsDead reports whether the actor's derived HP is zero or below.
func (p *Player) IsDead(actorID string) bool {
	hp, ok := p.st.health[actorID]
	return ok && hp <= 0
}

// Health returns a copy of the current health snapshot.
func (p *Player) Health() map[string]int {
	out := make(map[string]int, len(p.st.health))
	for id, hp := range p.st.health {
		out[id] = hp
	}
	return out
}

// Snapshot returns a copy of the playback state.
func (p *Player) Snapshot() Snapshot {
	return Snapshot{
		State:   p.st.state,
		Index:   p.st.index,
		Speed:   p.st.speed,
		Health:  p.Health(),
		Skipped: p.st.skipped,
	}
}
