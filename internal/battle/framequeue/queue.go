// Package framequeue flattens a combat log into the linear, strictly ordered
// sequence of items that playback walks through.
package framequeue

import (
	"fmt"

	"github.com/udisondev/combatplay/internal/combatlog"
)

// Item is one render-ready frame of the queue.
type Item struct {
	ID              string              `json:"id"`
	Index           int                 `json:"index"`
	Type            combatlog.FrameType `json:"type"`
	ActorID         string              `json:"actorId,omitempty"` // empty for round-level frames
	ActionID        string              `json:"actionId,omitempty"`
	Ability         string              `json:"ability,omitempty"`
	Element         string              `json:"element,omitempty"`
	Targets         []string            `json:"targets,omitempty"`
	Frame           combatlog.Frame     `json:"frame"`
	HPAfter         map[string]int      `json:"hpAfter,omitempty"`
	Round           int                 `json:"round"`
	IsRoundBoundary bool                `json:"isRoundBoundary,omitempty"`
}

// Kills returns the targets this item reports as killed.
func (it Item) Kills() []string {
	f, ok := it.Frame.(combatlog.ActionFrame)
	if !ok {
		return nil
	}
	var ids []string
	for _, r := range f.Results {
		if r.Kill {
			ids = append(ids, r.TargetID)
		}
	}
	return ids
}

// Queue is the flattened combat log.
type Queue []Item

// Last returns the final item. The queue must not be empty.
func (q Queue) Last() Item { return q[len(q)-1] }

// Adapt validates l and flattens it: for every round, each action's frames in
// log order, then the round's end frames. Adapt is pure; calling it twice on
// the same log yields equal output.
func Adapt(l *combatlog.CombatLog) (Queue, *Actors, error) {
	if err := combatlog.Validate(l); err != nil {
		return nil, nil, err
	}

	a := adapter{seen: make(map[string]struct{})}
	for _, r := range l.Rounds {
		for _, act := range r.Actions {
			for i, f := range act.Frames {
				item := Item{
					ID:       fmt.Sprintf("act:%s/%d", act.ID, i),
					ActorID:  act.ActorID,
					ActionID: act.ID,
					Ability:  act.Ability,
					Element:  act.Element,
					Targets:  act.Targets,
					Round:    r.Number,
				}
				if err := a.add(item, f); err != nil {
					return nil, nil, err
				}
			}
		}
		for i, f := range r.EndFrames {
			item := Item{
				ID:    fmt.Sprintf("rnd:%d/%d", r.Number, i),
				Round: r.Number,
			}
			if err := a.add(item, f); err != nil {
				return nil, nil, err
			}
		}
	}

	return a.queue, NewActors(l.Actors), nil
}

type adapter struct {
	queue Queue
	seen  map[string]struct{}
}

func (a *adapter) add(item Item, f combatlog.Frame) error {
	if _, dup := a.seen[item.ID]; dup {
		return &combatlog.MalformedLogError{Reason: "duplicate frame id", Path: item.ID}
	}
	a.seen[item.ID] = struct{}{}

	item.Index = len(a.queue)
	item.Type = f.Type()
	item.Frame = f
	item.HPAfter = map[string]int{}

	switch fr := f.(type) {
	case combatlog.ActionFrame:
		for _, res := range fr.Results {
			item.HPAfter[res.TargetID] = res.HPAfter
		}
		if len(item.Targets) == 0 {
			item.Targets = resultTargets(fr.Results)
		}
	case combatlog.RoundEndFrame:
		item.IsRoundBoundary = true
		item.Targets = tickTargets(fr.StatusTicks)
		for _, t := range fr.StatusTicks {
			item.HPAfter[t.TargetID] = t.HPAfter
		}
	case combatlog.StatusTickFrame:
		item.Targets = tickTargets(fr.Ticks)
		for _, t := range fr.Ticks {
			item.HPAfter[t.TargetID] = t.HPAfter
		}
	case combatlog.DeathFrame:
		item.Targets = fr.Targets
		for _, id := range fr.Targets {
			item.HPAfter[id] = 0
		}
	case combatlog.EndBattleFrame:
	default:
		return &combatlog.MalformedLogError{Reason: fmt.Sprintf("unsupported frame %T", f), Path: item.ID}
	}

	a.queue = append(a.queue, item)
	return nil
}

func resultTargets(results []combatlog.TargetResult) []string {
	var ids []string
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, ok := seen[r.TargetID]; !ok {
			seen[r.TargetID] = struct{}{}
			ids = append(ids, r.TargetID)
		}
	}
	return ids
}

func tickTargets(ticks []combatlog.StatusTick) []string {
	var ids []string
	seen := make(map[string]struct{}, len(ticks))
	for _, t := range ticks {
		if _, ok := seen[t.TargetID]; !ok {
			seen[t.TargetID] = struct{}{}
			ids = append(ids, t.TargetID)
		}
	}
	return ids
}
