// Package combatlog defines the server-produced combat log: actors, rounds,
// actions and the frames that realize them.
//
// A CombatLog is read-only once decoded. Playback keeps its own working copy
// of health and effects; nothing in this package is mutated during replay.
package combatlog

// Outcome is the final result of a battle.
type Outcome string

const (
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeVictory || o == OutcomeDefeat
}

// Rewards granted by the server for the battle.
type Rewards struct {
	Gold int64 `json:"gold" yaml:"gold"`
	XP   int64 `json:"xp" yaml:"xp"`
}

// StatusState is a status an actor already carries when the battle starts.
type StatusState struct {
	ID       string `json:"id" yaml:"id"`
	Stacks   int    `json:"stacks" yaml:"stacks"`
	Duration int    `json:"duration" yaml:"duration"` // rounds
}

// Actor is a combat participant. Actor records come from the log header and
// are never added or removed during playback.
type Actor struct {
	ID        string        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	IsPlayer  bool          `json:"isPlayer" yaml:"isPlayer"`
	MaxHP     int           `json:"maxHp" yaml:"maxHp"`
	StartHP   int           `json:"startHp" yaml:"startHp"`
	EnemyType string        `json:"enemyType,omitempty" yaml:"enemyType,omitempty"`
	Statuses  []StatusState `json:"statuses,omitempty" yaml:"statuses,omitempty"`
}

// Action is one actor's move within a round.
type Action struct {
	ID      string    `json:"id" yaml:"id"`
	ActorID string    `json:"actorId" yaml:"actorId"`
	Ability string    `json:"ability,omitempty" yaml:"ability,omitempty"`
	Element string    `json:"element,omitempty" yaml:"element,omitempty"`
	Targets []string  `json:"targets" yaml:"targets"`
	Frames  FrameList `json:"frames" yaml:"frames"`
}

// Round groups the actions of one combat round followed by its end frames
// (status ticks and, in the last round, the end_battle frame).
type Round struct {
	Number    int       `json:"round" yaml:"round"`
	Actions   []Action  `json:"actions" yaml:"actions"`
	EndFrames FrameList `json:"endFrames" yaml:"endFrames"`
}

// CombatLog is the authoritative record of an entire battle.
type CombatLog struct {
	ID          string  `json:"id,omitempty" yaml:"id,omitempty"`
	DungeonID   string  `json:"dungeonId,omitempty" yaml:"dungeonId,omitempty"`
	Outcome     Outcome `json:"outcome" yaml:"outcome"`
	TotalRounds int     `json:"totalRounds" yaml:"totalRounds"`
	Rewards     Rewards `json:"rewards" yaml:"rewards"`
	Actors      []Actor `json:"actors" yaml:"actors"`
	Rounds      []Round `json:"rounds" yaml:"rounds"`
}

// EndBattle returns the end_battle frame of the log, if the log ends with one.
func (l *CombatLog) EndBattle() (EndBattleFrame, bool) {
	var last Frame
	for _, r := range l.Rounds {
		for _, a := range r.Actions {
			if n := len(a.Frames); n > 0 {
				last = a.Frames[n-1]
			}
		}
		if n := len(r.EndFrames); n > 0 {
			last = r.EndFrames[n-1]
		}
	}
	eb, ok := last.(EndBattleFrame)
	return eb, ok
}
