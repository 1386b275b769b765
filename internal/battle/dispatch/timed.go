package dispatch

import (
	"time"

	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/combatlog"
)

// Durations are base display durations per frame type at 1x speed.
type Durations map[combatlog.FrameType]time.Duration

// DefaultDurations returns the stock display durations.
func DefaultDurations() Durations {
	return Durations{
		combatlog.FrameAction:     900 * time.Millisecond,
		combatlog.FrameDeath:      700 * time.Millisecond,
		combatlog.FrameStatusTick: 500 * time.Millisecond,
		combatlog.FrameEndBattle:  1500 * time.Millisecond,
	}
}

// Scaled returns the display duration of typ at speed s.
func (d Durations) Scaled(typ combatlog.FrameType, s player.Speed) time.Duration {
	if !s.Valid() {
		s = player.Speed1x
	}
	return d[typ] / time.Duration(s)
}

// TimedRenderer completes each item after its scaled display duration. It
// draws nothing and is used by headless replays.
type TimedRenderer struct {
	Durations Durations
}

func (r TimedRenderer) Render(rc RenderContext, onComplete func()) {
	rc.Schedule(r.Durations.Scaled(rc.Item.Type, rc.Speed), onComplete)
}

// TimedRenderers registers a TimedRenderer for every rendered frame type.
func TimedRenderers(d Durations) Renderers {
	r := TimedRenderer{Durations: d}
	out := make(Renderers)
	for _, typ := range combatlog.FrameTypes() {
		if typ != combatlog.FrameRoundEnd {
			out[typ] = r
		}
	}
	return out
}
