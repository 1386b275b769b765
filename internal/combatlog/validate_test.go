package combatlog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLog() *CombatLog {
	return &CombatLog{
		Outcome:     OutcomeVictory,
		TotalRounds: 1,
		Actors: []Actor{
			{ID: "p1", Name: "Hero", IsPlayer: true, MaxHP: 100, StartHP: 100},
			{ID: "e1", Name: "Rat", MaxHP: 20, StartHP: 20},
		},
		Rounds: []Round{{
			Number: 1,
			Actions: []Action{{
				ID:      "a1",
				ActorID: "p1",
				Targets: []string{"e1"},
				Frames: FrameList{ActionFrame{Results: []TargetResult{
					{TargetID: "e1", Amount: 20, HPBefore: 20, HPAfter: 0, Kill: true},
				}}},
			}},
			EndFrames: FrameList{
				RoundEndFrame{},
				EndBattleFrame{Outcome: OutcomeVictory, Rewards: Rewards{Gold: 50, XP: 10}},
			},
		}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *CombatLog)
		reason string
	}{
		{
			name:   "valid",
			mutate: func(*CombatLog) {},
		},
		{
			name:   "zero rounds",
			mutate: func(l *CombatLog) { l.Rounds = nil; l.TotalRounds = 0 },
			reason: "no rounds",
		},
		{
			name: "last frame is round_end",
			mutate: func(l *CombatLog) {
				l.Rounds[0].EndFrames = FrameList{RoundEndFrame{}}
			},
			reason: "no end_battle",
		},
		{
			name: "end_battle followed by round_end",
			mutate: func(l *CombatLog) {
				ef := l.Rounds[0].EndFrames
				l.Rounds[0].EndFrames = FrameList{ef[1], ef[0]}
			},
			reason: "last frame is not end_battle",
		},
		{
			name: "two end_battle frames",
			mutate: func(l *CombatLog) {
				l.Rounds[0].EndFrames = append(l.Rounds[0].EndFrames, EndBattleFrame{Outcome: OutcomeVictory})
			},
			reason: "2 end_battle frames",
		},
		{
			name:   "unknown actor in action",
			mutate: func(l *CombatLog) { l.Rounds[0].Actions[0].ActorID = "ghost" },
			reason: `unknown actor id "ghost"`,
		},
		{
			name: "unknown actor in result",
			mutate: func(l *CombatLog) {
				l.Rounds[0].Actions[0].Frames = FrameList{ActionFrame{Results: []TargetResult{{TargetID: "ghost"}}}}
			},
			reason: `unknown actor id "ghost"`,
		},
		{
			name: "unknown actor in death frame",
			mutate: func(l *CombatLog) {
				l.Rounds[0].EndFrames = append(FrameList{DeathFrame{Targets: []string{"ghost"}}}, l.Rounds[0].EndFrames...)
			},
			reason: `unknown actor id "ghost"`,
		},
		{
			name: "unknown actor in status tick",
			mutate: func(l *CombatLog) {
				l.Rounds[0].EndFrames[0] = RoundEndFrame{StatusTicks: []StatusTick{{StatusID: "poison", TargetID: "ghost"}}}
			},
			reason: `unknown actor id "ghost"`,
		},
		{
			name:   "duplicate actor",
			mutate: func(l *CombatLog) { l.Actors = append(l.Actors, l.Actors[0]) },
			reason: "duplicate actor id",
		},
		{
			name: "duplicate action id",
			mutate: func(l *CombatLog) {
				l.Rounds[0].Actions = append(l.Rounds[0].Actions, l.Rounds[0].Actions[0])
			},
			reason: "duplicate action id",
		},
		{
			name:   "round numbers not increasing",
			mutate: func(l *CombatLog) { l.Rounds[0].Number = 0 },
			reason: "round number 0",
		},
		{
			name:   "totalRounds mismatch",
			mutate: func(l *CombatLog) { l.TotalRounds = 3 },
			reason: "totalRounds 3",
		},
		{
			name: "unknown outcome",
			mutate: func(l *CombatLog) {
				l.Rounds[0].EndFrames[1] = EndBattleFrame{Outcome: "draw"}
			},
			reason: `unknown outcome "draw"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLog()
			tt.mutate(l)

			err := Validate(l)
			if tt.reason == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedLog)

			var me *MalformedLogError
			require.True(t, errors.As(err, &me))
			assert.Contains(t, me.Reason, tt.reason)
		})
	}
}

func TestValidate_NilLog(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrMalformedLog)
}

func TestMalformedLogError_Message(t *testing.T) {
	err := &MalformedLogError{Reason: "log has no rounds", Path: "rounds"}
	assert.Equal(t, "malformed combat log: log has no rounds at rounds", err.Error())
}
