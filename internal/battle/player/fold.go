package player

import "github.com/udisondev/combatplay/internal/battle/framequeue"

// FoldHealth computes the final health of every actor without replaying the
// queue step by step: starting HP, overwritten by each item's hpAfter in
// queue order, then zero for every enemy named by a kill result anywhere in
// the queue.
//
// The kill pass covers logs whose later frames never re-report a killed
// enemy's HP.
//
// TODO: drop the kill pass once the combat service confirms kill results
// always carry hpAfter 0.
func FoldHealth(q framequeue.Queue, actors *framequeue.Actors) map[string]int {
	hp := actors.StartingHealth()
	for _, it := range q {
		for id, v := range it.HPAfter {
			hp[id] = v
		}
	}
	for _, it := range q {
		for _, id := range it.Kills() {
			if actors.IsEnemy(id) {
				hp[id] = 0
			}
		}
	}
	return hp
}
