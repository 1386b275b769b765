package player

import (
	"errors"
	"fmt"

	"github.com/udisondev/combatplay/internal/battle/framequeue"
)

var (
	ErrEmptyQueue   = errors.New("frame queue is empty")
	ErrInvalidSpeed = errors.New("invalid playback speed")
)

// State is the lifecycle state of a Player.
type State int

const (
	// Idle: queue not yet shown.
	Idle State = iota
	// Loading: waiting one tick so the renderer can mount.
	Loading
	// Playing: the current item advances on renderer completion.
	Playing
	// Ended: terminal until Reset.
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Speed is the playback speed multiplier.
type Speed int

const (
	Speed1x Speed = 1
	Speed2x Speed = 2
	Speed3x Speed = 3
)

// Speeds lists the selectable speeds.
func Speeds() []Speed { return []Speed{Speed1x, Speed2x, Speed3x} }

// Valid reports whether s is one of the selectable speeds.
func (s Speed) Valid() bool {
	return s >= Speed1x && s <= Speed3x
}

// EndReason tells how playback reached Ended.
type EndReason string

const (
	// EndBattleReached: the end_battle item became current.
	EndBattleReached EndReason = "end_battle"
	// EndExhausted: Next was called on the last item.
	EndExhausted EndReason = "exhausted"
	// EndSkipped: SkipToEnd was requested.
	EndSkipped EndReason = "skipped"
)

// Event is emitted by Player transitions, in order.
type Event interface {
	event()
}

// StateChanged reports a lifecycle transition.
type StateChanged struct {
	From, To State
}

// ItemChanged reports a new current item.
type ItemChanged struct {
	Item framequeue.Item
}

// SpeedChanged reports a new speed multiplier.
type SpeedChanged struct {
	Speed Speed
}

// Completed is emitted once per run, on the first transition into Ended.
type Completed struct {
	Reason EndReason
}

func (StateChanged) event() {}
func (ItemChanged) event()  {}
func (SpeedChanged) event() {}
func (Completed) event()    {}

// Snapshot is a copy of the playback state for presentation.
type Snapshot struct {
	State   State
	Index   int
	Speed   Speed
	Health  map[string]int
	Skipped bool
}
