package testutil

import (
	"fmt"
	"math/rand/v2"

	"github.com/udisondev/combatplay/internal/combatlog"
)

// LogBuilder assembles combat logs for tests.
//
//	log := testutil.NewLog().
//		Player("p1", "Hero", 100).
//		Enemy("e1", "Rat", 20).
//		Round().
//		Action("a1", "p1", []string{"e1"}, testutil.Hit("e1", 20, 20, 0, true)).
//		RoundEnd().
//		End(combatlog.OutcomeVictory, 50, 10).
//		Build()
type LogBuilder struct {
	log combatlog.CombatLog
}

// NewLog starts an empty log.
func NewLog() *LogBuilder {
	return &LogBuilder{}
}

// Player adds a player actor at full health.
func (b *LogBuilder) Player(id, name string, hp int) *LogBuilder {
	b.log.Actors = append(b.log.Actors, combatlog.Actor{ID: id, Name: name, IsPlayer: true, MaxHP: hp, StartHP: hp})
	return b
}

// Enemy adds an enemy actor at full health.
func (b *LogBuilder) Enemy(id, name string, hp int) *LogBuilder {
	b.log.Actors = append(b.log.Actors, combatlog.Actor{ID: id, Name: name, MaxHP: hp, StartHP: hp, EnemyType: "beast"})
	return b
}

// WithStatus gives the last added actor an initial status.
func (b *LogBuilder) WithStatus(id string, stacks, duration int) *LogBuilder {
	a := &b.log.Actors[len(b.log.Actors)-1]
	a.Statuses = append(a.Statuses, combatlog.StatusState{ID: id, Stacks: stacks, Duration: duration})
	return b
}

// Round starts the next round.
func (b *LogBuilder) Round() *LogBuilder {
	b.log.Rounds = append(b.log.Rounds, combatlog.Round{Number: len(b.log.Rounds) + 1})
	return b
}

func (b *LogBuilder) current() *combatlog.Round {
	if len(b.log.Rounds) == 0 {
		b.Round()
	}
	return &b.log.Rounds[len(b.log.Rounds)-1]
}

// Action appends an action to the current round.
func (b *LogBuilder) Action(id, actorID string, targets []string, frames ...combatlog.Frame) *LogBuilder {
	r := b.current()
	r.Actions = append(r.Actions, combatlog.Action{
		ID:      id,
		ActorID: actorID,
		Ability: "strike",
		Element: "physical",
		Targets: targets,
		Frames:  frames,
	})
	return b
}

// RoundEnd appends a round_end frame with the given ticks to the current round.
func (b *LogBuilder) RoundEnd(ticks ...combatlog.StatusTick) *LogBuilder {
	r := b.current()
	r.EndFrames = append(r.EndFrames, combatlog.RoundEndFrame{StatusTicks: ticks})
	return b
}

// EndFrame appends an arbitrary end frame to the current round.
func (b *LogBuilder) EndFrame(f combatlog.Frame) *LogBuilder {
	r := b.current()
	r.EndFrames = append(r.EndFrames, f)
	return b
}

// End appends the end_battle frame and fills the header outcome and rewards.
func (b *LogBuilder) End(outcome combatlog.Outcome, gold, xp int64) *LogBuilder {
	rewards := combatlog.Rewards{Gold: gold, XP: xp}
	b.log.Outcome = outcome
	b.log.Rewards = rewards
	return b.EndFrame(combatlog.EndBattleFrame{Outcome: outcome, Rewards: rewards})
}

// Build returns the log with TotalRounds filled in.
func (b *LogBuilder) Build() *combatlog.CombatLog {
	l := b.log
	l.TotalRounds = len(l.Rounds)
	return &l
}

// Hit is an action frame with a single damage result.
func Hit(target string, amount, hpBefore, hpAfter int, kill bool) combatlog.ActionFrame {
	return combatlog.ActionFrame{Results: []combatlog.TargetResult{{
		TargetID: target,
		Kind:     combatlog.ResultDamage,
		Amount:   amount,
		HPBefore: hpBefore,
		HPAfter:  hpAfter,
		Kill:     kill,
	}}}
}

// Afflict is an action frame dealing damage and applying a status.
func Afflict(target string, amount, hpBefore, hpAfter int, status string, stacks, duration int) combatlog.ActionFrame {
	f := Hit(target, amount, hpBefore, hpAfter, false)
	f.Results[0].StatusApplied = []combatlog.StatusApplication{{ID: status, Stacks: stacks, Duration: duration}}
	return f
}

// Tick is a status tick result.
func Tick(status, target string, amount, hpBefore, stacksBefore, durationAfter int) combatlog.StatusTick {
	return combatlog.StatusTick{
		StatusID:      status,
		TargetID:      target,
		Amount:        amount,
		HPBefore:      hpBefore,
		HPAfter:       hpBefore - amount,
		StacksBefore:  stacksBefore,
		DurationAfter: durationAfter,
		Expired:       durationAfter <= 0,
	}
}

// SimpleKillLog is a one-round victory: the player kills a 20 HP enemy.
func SimpleKillLog() *combatlog.CombatLog {
	return NewLog().
		Player("p1", "Hero", 100).
		Enemy("e1", "Rat", 20).
		Round().
		Action("a1", "p1", []string{"e1"}, Hit("e1", 20, 20, 0, true)).
		RoundEnd().
		End(combatlog.OutcomeVictory, 50, 10).
		Build()
}

// PoisonLog is a three-round victory. Round 2 poisons the player
// (1 stack, 2 rounds) and round 3 ends with a poison tick leaving 1 round.
// The player finishes at 67 HP with poison still active.
func PoisonLog() *combatlog.CombatLog {
	return NewLog().
		Player("p1", "Hero", 100).
		Enemy("e1", "Spider", 60).
		Round().
		Action("r1a1", "p1", []string{"e1"}, Hit("e1", 20, 60, 40, false)).
		Action("r1a2", "e1", []string{"p1"}, Hit("p1", 10, 100, 90, false)).
		RoundEnd().
		Round().
		Action("r2a1", "p1", []string{"e1"}, Hit("e1", 20, 40, 20, false)).
		Action("r2a2", "e1", []string{"p1"}, Afflict("p1", 8, 90, 82, "poison", 1, 2)).
		RoundEnd().
		Round().
		Action("r3a1", "e1", []string{"p1"}, Hit("p1", 12, 82, 70, false)).
		Action("r3a2", "p1", []string{"e1"}, Hit("e1", 20, 20, 0, true)).
		EndFrame(combatlog.DeathFrame{Targets: []string{"e1"}, Cause: "strike"}).
		RoundEnd(Tick("poison", "p1", 3, 70, 1, 1)).
		End(combatlog.OutcomeVictory, 120, 40).
		Build()
}

// RandomLog generates a well-formed log from rng: one player against one to
// three enemies, up to six rounds, with statuses, ticks and deaths. Some kill
// results leave a stale non-zero hpAfter, as a sloppy log producer would.
func RandomLog(rng *rand.Rand) *combatlog.CombatLog {
	type status struct {
		stacks, duration int
	}
	hp := map[string]int{}
	statuses := map[string]map[string]*status{}
	b := NewLog()

	b.Player("p1", "Hero", 80+rng.IntN(60))
	hp["p1"] = b.log.Actors[0].StartHP
	enemies := 1 + rng.IntN(3)
	for i := 0; i < enemies; i++ {
		id := fmt.Sprintf("e%d", i+1)
		b.Enemy(id, "Goblin", 20+rng.IntN(40))
		hp[id] = b.log.Actors[len(b.log.Actors)-1].StartHP
		if rng.IntN(4) == 0 {
			b.WithStatus("regen", 1, 3)
		}
	}

	alive := func(id string) bool { return hp[id] > 0 }
	sideAlive := func(player bool) []string {
		var ids []string
		for _, a := range b.log.Actors {
			if a.IsPlayer == player && alive(a.ID) {
				ids = append(ids, a.ID)
			}
		}
		return ids
	}
	statusIDs := []string{"poison", "burn", "weaken"}

	actionSeq := 0
	for round := 1; round <= 6; round++ {
		b.Round()
		for _, actor := range b.log.Actors {
			if !alive(actor.ID) {
				continue
			}
			foes := sideAlive(!actor.IsPlayer)
			if len(foes) == 0 {
				break
			}
			target := foes[rng.IntN(len(foes))]
			actionSeq++
			actionID := fmt.Sprintf("act-%d", actionSeq)

			var frames []combatlog.Frame
			hits := 1 + rng.IntN(2)
			for h := 0; h < hits && alive(target); h++ {
				dmg := 5 + rng.IntN(20)
				before := hp[target]
				after := max(before-dmg, 0)
				hp[target] = after
				res := combatlog.TargetResult{
					TargetID: target,
					Kind:     combatlog.ResultDamage,
					Amount:   dmg,
					Crit:     rng.IntN(5) == 0,
					HPBefore: before,
					HPAfter:  after,
					Kill:     after == 0,
				}
				// Stale values only on enemy kills; player deaths always report zero.
				if res.Kill && actor.IsPlayer && rng.IntN(3) == 0 {
					res.HPAfter = 1
				}
				if after > 0 && rng.IntN(3) == 0 {
					id := statusIDs[rng.IntN(len(statusIDs))]
					app := combatlog.StatusApplication{ID: id, Stacks: 1 + rng.IntN(2), Duration: 1 + rng.IntN(3)}
					res.StatusApplied = append(res.StatusApplied, app)
					if statuses[target] == nil {
						statuses[target] = map[string]*status{}
					}
					if s, ok := statuses[target][id]; ok {
						s.stacks = min(s.stacks+app.Stacks, 5)
						s.duration = max(s.duration, app.Duration)
					} else {
						statuses[target][id] = &status{stacks: app.Stacks, duration: app.Duration}
					}
				}
				frames = append(frames, combatlog.ActionFrame{Results: []combatlog.TargetResult{res}})
			}
			b.Action(actionID, actor.ID, []string{target}, frames...)
			if !alive(target) {
				b.EndFrame(combatlog.DeathFrame{Targets: []string{target}, Cause: "strike"})
				delete(statuses, target)
			}
		}

		var ticks []combatlog.StatusTick
		var died []string
		for _, actor := range b.log.Actors {
			byID := statuses[actor.ID]
			if !alive(actor.ID) || len(byID) == 0 {
				continue
			}
			for _, id := range statusIDs {
				s, ok := byID[id]
				if !ok || !alive(actor.ID) {
					continue
				}
				dmg := 2 * s.stacks
				before := hp[actor.ID]
				after := max(before-dmg, 0)
				hp[actor.ID] = after
				s.duration--
				ticks = append(ticks, combatlog.StatusTick{
					StatusID:      id,
					TargetID:      actor.ID,
					Amount:        dmg,
					HPBefore:      before,
					HPAfter:       after,
					StacksBefore:  s.stacks,
					DurationAfter: s.duration,
					Expired:       s.duration <= 0,
					Lethal:        after == 0,
				})
				if s.duration <= 0 {
					delete(byID, id)
				}
				if after == 0 {
					died = append(died, actor.ID)
				}
			}
		}
		b.RoundEnd(ticks...)
		if len(died) > 0 {
			b.EndFrame(combatlog.DeathFrame{Targets: died, Cause: "status"})
		}

		if len(sideAlive(true)) == 0 || len(sideAlive(false)) == 0 {
			break
		}
	}

	outcome := combatlog.OutcomeDefeat
	if len(sideAlive(true)) > 0 && len(sideAlive(false)) == 0 {
		outcome = combatlog.OutcomeVictory
	}
	return b.End(outcome, int64(rng.IntN(200)), int64(rng.IntN(100))).Build()
}
