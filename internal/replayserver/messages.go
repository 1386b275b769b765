package replayserver

import (
	"github.com/udisondev/combatplay/internal/battle/effects"
	"github.com/udisondev/combatplay/internal/battle/framequeue"
	"github.com/udisondev/combatplay/internal/battle/outcome"
	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/combatlog"
)

// Server → client message types.
const (
	typeActors  = "actors"
	typeItem    = "item"
	typeOutcome = "outcome"
	typeError   = "error"
)

// Client → server message types.
const (
	typeComplete = "complete"
	typeSpeed    = "speed"
	typeSkip     = "skip"
)

type actorsMessage struct {
	Type   string            `json:"type"`
	LogID  string            `json:"logId"`
	Actors []combatlog.Actor `json:"actors"`
}

type itemMessage struct {
	Type    string                      `json:"type"`
	Item    framequeue.Item             `json:"item"`
	Speed   player.Speed                `json:"speed"`
	Health  map[string]int              `json:"health"`
	Effects map[string][]effects.Effect `json:"effects,omitempty"`
}

type outcomeMessage struct {
	Type string `json:"type"`
	outcome.Summary
}

type errorMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry"`
}

type clientMessage struct {
	Type   string       `json:"type"`
	ItemID string       `json:"itemId,omitempty"`
	Speed  player.Speed `json:"speed,omitempty"`
}
