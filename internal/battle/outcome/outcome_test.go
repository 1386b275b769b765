package outcome

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/combatplay/internal/battle/framequeue"
	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/combatlog"
	"github.com/udisondev/combatplay/internal/testutil"
)

type emission struct {
	outcome combatlog.Outcome
	rewards combatlog.Rewards
}

func newPlayer(t *testing.T, l *combatlog.CombatLog) *player.Player {
	t.Helper()
	q, actors, err := framequeue.Adapt(l)
	require.NoError(t, err)
	p, err := player.New(q, actors)
	require.NoError(t, err)
	return p
}

func TestResolver_SimpleKillEmitsOnce(t *testing.T) {
	l := testutil.SimpleKillLog()
	p := newPlayer(t, l)
	p.SkipToEnd()

	var got []emission
	r, err := NewResolver(l, func(o combatlog.Outcome, rw combatlog.Rewards) {
		got = append(got, emission{o, rw})
	})
	require.NoError(t, err)
	assert.False(t, r.Emitted())

	s, first := r.Resolve(p)
	assert.True(t, first)
	assert.True(t, r.Emitted())

	_, again := r.Resolve(p)
	assert.False(t, again)

	assert.Equal(t, []emission{{combatlog.OutcomeVictory, combatlog.Rewards{Gold: 50, XP: 10}}}, got)
	assert.Equal(t, combatlog.OutcomeVictory, s.Outcome)
	assert.Equal(t, map[string]int{"p1": 100, "e1": 0}, s.FinalHealth)
	assert.Equal(t, []string{"e1"}, s.Dead)
	assert.True(t, s.Skipped)
	assert.Empty(t, s.Mismatches)
}

func TestResolver_ConcurrentResolve(t *testing.T) {
	l := testutil.PoisonLog()
	p := newPlayer(t, l)
	p.SkipToEnd()

	var mu sync.Mutex
	calls := 0
	r, err := NewResolver(l, func(combatlog.Outcome, combatlog.Rewards) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	firsts := make(chan bool, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, first := r.Resolve(p)
			firsts <- first
		}()
	}
	wg.Wait()
	close(firsts)

	n := 0
	for f := range firsts {
		if f {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
}

func TestResolver_TakesOutcomeFromEndBattle(t *testing.T) {
	l := testutil.SimpleKillLog()
	l.Outcome = combatlog.OutcomeDefeat
	l.Rewards = combatlog.Rewards{Gold: 1}
	p := newPlayer(t, l)
	p.SkipToEnd()

	r, err := NewResolver(l, nil)
	require.NoError(t, err)
	assert.Equal(t, combatlog.OutcomeVictory, r.Outcome())
	assert.Equal(t, combatlog.Rewards{Gold: 50, XP: 10}, r.Rewards())

	s, _ := r.Resolve(p)
	assert.Equal(t, combatlog.OutcomeVictory, s.Outcome)
	assert.Equal(t, combatlog.Rewards{Gold: 50, XP: 10}, s.Rewards)
	require.Len(t, s.Mismatches, 1)
	assert.Contains(t, s.Mismatches[0], "header outcome defeat")
}

func TestNewResolver_NoEndBattle(t *testing.T) {
	l := testutil.SimpleKillLog()
	r0 := &l.Rounds[0]
	r0.EndFrames = r0.EndFrames[:len(r0.EndFrames)-1]

	_, err := NewResolver(l, nil)
	assert.ErrorIs(t, err, ErrNoEndBattle)
}

func TestReconcile_Mismatches(t *testing.T) {
	tests := []struct {
		name    string
		outcome combatlog.Outcome
		enemyHP int
		kill    bool
		want    []string
	}{
		{"victory consistent", combatlog.OutcomeVictory, 0, true, nil},
		{"victory with enemy alive", combatlog.OutcomeVictory, 5, false, []string{"victory with an enemy still alive"}},
		{"defeat with enemies dead", combatlog.OutcomeDefeat, 0, true, []string{"defeat with every enemy dead"}},
		{"defeat by timeout", combatlog.OutcomeDefeat, 5, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testutil.NewLog().
				Player("p1", "Hero", 100).
				Enemy("e1", "Rat", 20).
				Round().
				Action("a1", "p1", []string{"e1"}, testutil.Hit("e1", 20-tt.enemyHP, 20, tt.enemyHP, tt.kill)).
				End(tt.outcome, 0, 0).
				Build()
			p := newPlayer(t, l)
			p.SkipToEnd()

			end, ok := l.EndBattle()
			require.True(t, ok)
			s := Reconcile(l.ID, l.Outcome, end, p)
			assert.Equal(t, tt.want, s.Mismatches)
			assert.Equal(t, tt.outcome, s.Outcome)
		})
	}
}
