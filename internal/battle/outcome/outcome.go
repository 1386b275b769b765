// Package outcome emits the result of a combat session exactly once.
package outcome

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/combatlog"
)

var ErrNoEndBattle = errors.New("combat log has no end_battle frame")

// Callback receives the outcome and rewards of a session.
type Callback func(combatlog.Outcome, combatlog.Rewards)

// Summary is what a session ended with. Outcome and Rewards are copied from
// the end_battle frame; the rest is derived playback state kept for
// reporting.
type Summary struct {
	LogID       string            `json:"logId"`
	Outcome     combatlog.Outcome `json:"outcome"`
	Rewards     combatlog.Rewards `json:"rewards"`
	FinalHealth map[string]int    `json:"finalHealth"`
	Dead        []string          `json:"dead,omitempty"`
	Skipped     bool              `json:"skipped"`
	Mismatches  []string          `json:"mismatches,omitempty"`
}

// Resolver emits the outcome of one session.
//
// Thread-safe: Resolve may race between a renderer acknowledgement and a
// skip; only the first call emits.
type Resolver struct {
	once     sync.Once
	logID    string
	header   combatlog.Outcome
	end      combatlog.EndBattleFrame
	callback Callback
	summary  Summary
	emitted  bool
	mu       sync.Mutex
}

// NewResolver reads the end_battle frame of l. callback may be nil.
func NewResolver(l *combatlog.CombatLog, callback Callback) (*Resolver, error) {
	end, ok := l.EndBattle()
	if !ok {
		return nil, fmt.Errorf("resolving outcome of log %s: %w", l.ID, ErrNoEndBattle)
	}
	return &Resolver{
		logID:    l.ID,
		header:   l.Outcome,
		end:      end,
		callback: callback,
	}, nil
}

// Outcome returns the outcome written in the end_battle frame.
func (r *Resolver) Outcome() combatlog.Outcome { return r.end.Outcome }

// Rewards returns the rewards written in the end_battle frame.
func (r *Resolver) Rewards() combatlog.Rewards { return r.end.Rewards }

// Resolve invokes the callback and builds the summary on the first call.
// Later calls return the same summary and false.
func (r *Resolver) Resolve(p *player.Player) (Summary, bool) {
	first := false
	r.once.Do(func() {
		s := Reconcile(r.logID, r.header, r.end, p)
		r.mu.Lock()
		r.summary = s
		r.emitted = true
		r.mu.Unlock()

		for _, m := range s.Mismatches {
			slog.Warn("combat outcome does not match playback state",
				"log", r.logID,
				"outcome", s.Outcome,
				"mismatch", m)
		}
		slog.Info("combat outcome",
			"log", r.logID,
			"outcome", s.Outcome,
			"gold", s.Rewards.Gold,
			"xp", s.Rewards.XP,
			"skipped", s.Skipped)

		if r.callback != nil {
			r.callback(s.Outcome, s.Rewards)
		}
		first = true
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary, first
}

// Emitted reports whether the outcome has been emitted.
func (r *Resolver) Emitted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitted
}

// Reconcile builds the summary of p against the end_battle frame. The
// outcome is never changed; disagreements only end up in Mismatches.
func Reconcile(logID string, header combatlog.Outcome, end combatlog.EndBattleFrame, p *player.Player) Summary {
	s := Summary{
		LogID:       logID,
		Outcome:     end.Outcome,
		Rewards:     end.Rewards,
		FinalHealth: p.Health(),
		Skipped:     p.Skipped(),
	}

	if header != "" && header != end.Outcome {
		s.Mismatches = append(s.Mismatches,
			fmt.Sprintf("header outcome %s, end_battle outcome %s", header, end.Outcome))
	}

	playerAlive, enemyAlive := false, false
	for _, a := range p.Actors().All() {
		if p.IsDead(a.ID) {
			s.Dead = append(s.Dead, a.ID)
			continue
		}
		if a.IsPlayer {
			playerAlive = true
		} else {
			enemyAlive = true
		}
	}

	switch end.Outcome {
	case combatlog.OutcomeVictory:
		if enemyAlive {
			s.Mismatches = append(s.Mismatches, "victory with an enemy still alive")
		}
		if !playerAlive {
			s.Mismatches = append(s.Mismatches, "victory with no player alive")
		}
	case combatlog.OutcomeDefeat:
		if playerAlive && !enemyAlive {
			s.Mismatches = append(s.Mismatches, "defeat with every enemy dead")
		}
	}
	return s
}
