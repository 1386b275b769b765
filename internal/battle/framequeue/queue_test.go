package framequeue

import (
	"bytes"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/combatplay/internal/combatlog"
	"github.com/udisondev/combatplay/internal/testutil"
)

func TestAdapt_SimpleKill(t *testing.T) {
	q, actors, err := Adapt(testutil.SimpleKillLog())
	require.NoError(t, err)
	require.Len(t, q, 3)

	assert.Equal(t, "act:a1/0", q[0].ID)
	assert.Equal(t, combatlog.FrameAction, q[0].Type)
	assert.Equal(t, "p1", q[0].ActorID)
	assert.Equal(t, []string{"e1"}, q[0].Targets)
	assert.Equal(t, map[string]int{"e1": 0}, q[0].HPAfter)
	assert.Equal(t, []string{"e1"}, q[0].Kills())
	assert.False(t, q[0].IsRoundBoundary)

	assert.Equal(t, "rnd:1/0", q[1].ID)
	assert.Equal(t, combatlog.FrameRoundEnd, q[1].Type)
	assert.True(t, q[1].IsRoundBoundary)
	assert.Empty(t, q[1].ActorID)

	assert.Equal(t, "rnd:1/1", q[2].ID)
	assert.Equal(t, combatlog.FrameEndBattle, q.Last().Type)

	for i, it := range q {
		assert.Equal(t, i, it.Index)
		assert.Equal(t, 1, it.Round)
	}

	require.Equal(t, 2, actors.Len())
	enemy, ok := actors.FirstEnemy()
	require.True(t, ok)
	assert.Equal(t, "e1", enemy.ID)
	assert.True(t, actors.IsEnemy("e1"))
	assert.False(t, actors.IsEnemy("p1"))
	assert.False(t, actors.IsEnemy("nobody"))
}

func TestAdapt_RoundEndAndDeathHP(t *testing.T) {
	q, _, err := Adapt(testutil.PoisonLog())
	require.NoError(t, err)

	var death, lastRoundEnd Item
	for _, it := range q {
		switch it.Type {
		case combatlog.FrameDeath:
			death = it
		case combatlog.FrameRoundEnd:
			lastRoundEnd = it
		}
	}

	assert.Equal(t, map[string]int{"e1": 0}, death.HPAfter)
	assert.Equal(t, []string{"e1"}, death.Targets)
	assert.Equal(t, map[string]int{"p1": 67}, lastRoundEnd.HPAfter)
	assert.Equal(t, 3, lastRoundEnd.Round)
}

func TestAdapt_DeathForcesZero(t *testing.T) {
	// The kill result reports a stale HP; the death frame must still zero it.
	l := testutil.NewLog().
		Player("p1", "Hero", 100).
		Enemy("e1", "Golem", 50).
		Round().
		Action("a1", "p1", []string{"e1"}, testutil.Hit("e1", 50, 50, 7, true)).
		EndFrame(combatlog.DeathFrame{Targets: []string{"e1"}}).
		End(combatlog.OutcomeVictory, 1, 1).
		Build()

	q, _, err := Adapt(l)
	require.NoError(t, err)
	assert.Equal(t, 7, q[0].HPAfter["e1"])
	assert.Equal(t, 0, q[1].HPAfter["e1"])
}

func TestAdapt_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		log  *combatlog.CombatLog
	}{
		{
			name: "zero rounds",
			log:  testutil.NewLog().Player("p1", "Hero", 10).Build(),
		},
		{
			name: "last frame is round_end",
			log: testutil.NewLog().
				Player("p1", "Hero", 10).
				Enemy("e1", "Rat", 5).
				Round().
				Action("a1", "p1", []string{"e1"}, testutil.Hit("e1", 5, 5, 0, true)).
				RoundEnd().
				Build(),
		},
		{
			name: "two end_battle frames",
			log: testutil.NewLog().
				Player("p1", "Hero", 10).
				Round().
				End(combatlog.OutcomeDefeat, 0, 0).
				Round().
				End(combatlog.OutcomeDefeat, 0, 0).
				Build(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, actors, err := Adapt(tt.log)
			require.ErrorIs(t, err, combatlog.ErrMalformedLog)
			assert.Nil(t, q)
			assert.Nil(t, actors)
		})
	}
}

func TestAdapt_Idempotent(t *testing.T) {
	l := testutil.PoisonLog()

	q1, a1, err := Adapt(l)
	require.NoError(t, err)
	q2, a2, err := Adapt(l)
	require.NoError(t, err)

	assert.Equal(t, q1, q2)
	assert.Equal(t, a1.All(), a2.All())
}

func TestAdapt_RandomLogs_OrderAndIDs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for n := 0; n < 200; n++ {
		l := testutil.RandomLog(rng)
		q, _, err := Adapt(l)
		require.NoError(t, err, "log %d", n)
		require.NotEmpty(t, q)

		ids := make(map[string]struct{}, len(q))
		prevRound := 0
		boundarySeen := false
		for _, it := range q {
			_, dup := ids[it.ID]
			require.False(t, dup, "log %d: duplicate id %s", n, it.ID)
			ids[it.ID] = struct{}{}

			require.GreaterOrEqual(t, it.Round, prevRound, "log %d: round order", n)
			if it.Round != prevRound {
				prevRound = it.Round
				boundarySeen = false
			}
			if it.IsRoundBoundary {
				boundarySeen = true
			}
			if it.Type == combatlog.FrameAction {
				require.False(t, boundarySeen, "log %d: action after round_end in round %d", n, it.Round)
			}
		}
		assert.Equal(t, combatlog.FrameEndBattle, q.Last().Type)
	}
}

func TestActors_StartingHealth(t *testing.T) {
	actors := NewActors(testutil.PoisonLog().Actors)

	hp := actors.StartingHealth()
	assert.Equal(t, map[string]int{"p1": 100, "e1": 60}, hp)

	hp["p1"] = 1
	assert.Equal(t, 100, actors.StartingHealth()["p1"])
}

func TestAdapt_OutcomeMismatchIsLeftToReconcile(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := testutil.SimpleKillLog()
	l.Outcome = combatlog.OutcomeDefeat

	q, _, err := Adapt(l)
	require.NoError(t, err)
	assert.Equal(t, combatlog.FrameEndBattle, q.Last().Type)
	assert.Empty(t, buf.String())
}
