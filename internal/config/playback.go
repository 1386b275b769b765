package config

import (
	"fmt"
	"time"

	"github.com/udisondev/combatplay/internal/battle/dispatch"
	"github.com/udisondev/combatplay/internal/battle/effects"
	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/battle/session"
)

// Playback holds pacing parameters of a combat session.
type Playback struct {
	DefaultSpeed player.Speed       `yaml:"default_speed"` // 1, 2 or 3
	MountDelay   time.Duration      `yaml:"mount_delay"`   // loading tick before the first item
	StackCap     int                `yaml:"stack_cap"`     // max stacks of one status
	Durations    dispatch.Durations `yaml:"durations"`     // per item at 1x
}

// DefaultPlayback returns the stock pacing.
func DefaultPlayback() Playback {
	return Playback{
		DefaultSpeed: player.Speed1x,
		MountDelay:   session.DefaultMountDelay,
		StackCap:     effects.DefaultStackCap,
		Durations:    dispatch.DefaultDurations(),
	}
}

func (p Playback) validate() error {
	if !p.DefaultSpeed.Valid() {
		return fmt.Errorf("playback.default_speed: %w: %d", player.ErrInvalidSpeed, p.DefaultSpeed)
	}
	if p.StackCap <= 0 {
		return fmt.Errorf("playback.stack_cap must be positive, got %d", p.StackCap)
	}
	for typ, d := range p.Durations {
		if d < 0 {
			return fmt.Errorf("playback.durations.%s is negative", typ)
		}
	}
	return nil
}

// DisplayDurations returns the configured durations over the defaults.
func (p Playback) DisplayDurations() dispatch.Durations {
	out := dispatch.DefaultDurations()
	for typ, d := range p.Durations {
		out[typ] = d
	}
	return out
}

// SessionOptions turns the playback section into session options.
func (p Playback) SessionOptions(catalog *effects.Catalog) []session.Option {
	return []session.Option{
		session.WithDefaultSpeed(p.DefaultSpeed),
		session.WithMountDelay(p.MountDelay),
		session.WithLedger(catalog, p.StackCap),
	}
}
