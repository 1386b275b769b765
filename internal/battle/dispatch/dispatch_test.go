package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/combatplay/internal/battle/framequeue"
	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/battle/timer"
	"github.com/udisondev/combatplay/internal/combatlog"
	"github.com/udisondev/combatplay/internal/testutil"
)

// recorder keeps every render call and its completion callback.
type recorder struct {
	calls    []RenderContext
	complete []func()
}

func (r *recorder) Render(rc RenderContext, onComplete func()) {
	r.calls = append(r.calls, rc)
	r.complete = append(r.complete, onComplete)
}

func (r *recorder) renderers() Renderers {
	return Renderers{
		combatlog.FrameAction:     r,
		combatlog.FrameStatusTick: r,
		combatlog.FrameDeath:      r,
		combatlog.FrameEndBattle:  r,
	}
}

func newPlayer(t *testing.T, l *combatlog.CombatLog) *player.Player {
	t.Helper()
	q, actors, err := framequeue.Adapt(l)
	require.NoError(t, err)
	p, err := player.New(q, actors)
	require.NoError(t, err)
	return p
}

func noSchedule(time.Duration, func()) {}

func TestNew_MissingRenderer(t *testing.T) {
	rec := &recorder{}
	for _, typ := range []combatlog.FrameType{
		combatlog.FrameAction,
		combatlog.FrameStatusTick,
		combatlog.FrameDeath,
		combatlog.FrameEndBattle,
	} {
		t.Run(string(typ), func(t *testing.T) {
			rs := rec.renderers()
			delete(rs, typ)
			_, err := New(rs)
			assert.ErrorIs(t, err, ErrMissingRenderer)
			assert.Contains(t, err.Error(), string(typ))
		})
	}

	_, err := New(rec.renderers())
	assert.NoError(t, err, "round_end needs no renderer")
}

func TestPresent_RoundEndIsNeverRendered(t *testing.T) {
	rec := &recorder{}
	d, err := New(rec.renderers())
	require.NoError(t, err)

	p := newPlayer(t, testutil.PoisonLog())
	p.Start()
	p.Mount()

	var completed []string
	onComplete := func(id string) { completed = append(completed, id) }

	for i := 0; ; i++ {
		require.Less(t, i, 50)
		d.Present(p, noSchedule, onComplete)
		if p.State() == player.Ended {
			break
		}
		rec.complete[len(rec.complete)-1]()
		p.Next()
	}

	var rendered []string
	for _, rc := range rec.calls {
		assert.NotEqual(t, combatlog.FrameRoundEnd, rc.Item.Type)
		rendered = append(rendered, rc.Item.ID)
	}
	assert.Equal(t, []string{
		"act:r1a1/0", "act:r1a2/0",
		"act:r2a1/0", "act:r2a2/0",
		"act:r3a1/0", "act:r3a2/0", "rnd:3/0",
		"rnd:3/2",
	}, rendered)
	assert.Equal(t, rendered[:len(rendered)-1], completed)

	vis, ok := d.Visible()
	require.True(t, ok)
	assert.Equal(t, combatlog.FrameEndBattle, vis.Type)
}

func TestPresent_FreezesVisibleItemAcrossRoundEnd(t *testing.T) {
	rec := &recorder{}
	d, err := New(rec.renderers())
	require.NoError(t, err)

	p := newPlayer(t, testutil.SimpleKillLog())
	p.Start()
	p.Mount()
	d.Present(p, noSchedule, func(string) {})

	// The player moves onto round_end; the action stays visible.
	p.Next()
	cur, _ := p.Current()
	require.Equal(t, combatlog.FrameRoundEnd, cur.Type)
	vis, ok := d.Visible()
	require.True(t, ok)
	assert.Equal(t, "act:a1/0", vis.ID)

	events := d.Present(p, noSchedule, func(string) {})
	assert.Contains(t, events, player.Completed{Reason: player.EndBattleReached})
	vis, _ = d.Visible()
	assert.Equal(t, combatlog.FrameEndBattle, vis.Type)
	require.Len(t, rec.calls, 2)
}

func TestPresent_RenderContext(t *testing.T) {
	rec := &recorder{}
	d, err := New(rec.renderers())
	require.NoError(t, err)

	p := newPlayer(t, testutil.PoisonLog())
	_, err = p.SetSpeed(player.Speed3x)
	require.NoError(t, err)
	p.Start()
	p.Mount()
	p.Next()
	p.Next() // round_end
	p.Next()
	p.Next() // poison applied

	d.Present(p, noSchedule, func(string) {})
	require.Len(t, rec.calls, 1)
	rc := rec.calls[0]
	assert.Equal(t, "act:r2a2/0", rc.Item.ID)
	assert.Equal(t, player.Speed3x, rc.Speed)
	assert.Equal(t, 82, rc.Health["p1"])
	require.Len(t, rc.Effects["p1"], 1)
	assert.Equal(t, "poison", rc.Effects["p1"][0].Definition.ID)
	assert.Same(t, p.Actors(), rc.Actors)
}

func TestPresent_BeforeMount(t *testing.T) {
	rec := &recorder{}
	d, err := New(rec.renderers())
	require.NoError(t, err)

	p := newPlayer(t, testutil.SimpleKillLog())
	assert.Empty(t, d.Present(p, noSchedule, func(string) {}))
	assert.Empty(t, rec.calls)
	_, ok := d.Visible()
	assert.False(t, ok)
}

func TestTimedRenderer_ScalesBySpeed(t *testing.T) {
	m := timer.NewManual()
	r := TimedRenderer{Durations: DefaultDurations()}

	tests := []struct {
		typ   combatlog.FrameType
		speed player.Speed
		want  time.Duration
	}{
		{combatlog.FrameAction, player.Speed1x, 900 * time.Millisecond},
		{combatlog.FrameAction, player.Speed3x, 300 * time.Millisecond},
		{combatlog.FrameDeath, player.Speed2x, 350 * time.Millisecond},
		{combatlog.FrameEndBattle, player.Speed1x, 1500 * time.Millisecond},
		{combatlog.FrameStatusTick, player.Speed(9), 500 * time.Millisecond},
	}
	for _, tt := range tests {
		done := false
		r.Render(RenderContext{
			Item:     framequeue.Item{Type: tt.typ},
			Speed:    tt.speed,
			Schedule: m.Schedule,
		}, func() { done = true })

		d, ok := m.Pending()
		require.True(t, ok)
		assert.Equal(t, tt.want, d, "%s at %dx", tt.typ, tt.speed)
		require.True(t, m.Fire())
		assert.True(t, done)
	}
}

func TestTimedRenderers_CoversRenderedTypes(t *testing.T) {
	rs := TimedRenderers(DefaultDurations())
	_, err := New(rs)
	require.NoError(t, err)
	assert.NotContains(t, rs, combatlog.FrameRoundEnd)
}
