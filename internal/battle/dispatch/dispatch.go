// Package dispatch routes the current frame queue item to a renderer chosen
// by frame type.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/combatplay/internal/battle/effects"
	"github.com/udisondev/combatplay/internal/battle/framequeue"
	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/combatlog"
)

var ErrMissingRenderer = errors.New("no renderer for frame type")

// ScheduleFunc arms the session's single pending timer.
type ScheduleFunc func(d time.Duration, fn func())

// RenderContext is what a renderer gets to draw one item.
type RenderContext struct {
	Item     framequeue.Item
	Actors   *framequeue.Actors
	Health   map[string]int
	Effects  map[string][]effects.Effect
	Speed    player.Speed
	Schedule ScheduleFunc
}

// Renderer displays one item and calls onComplete when it is done. onComplete
// may be called from any goroutine, at most once.
type Renderer interface {
	Render(rc RenderContext, onComplete func())
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(rc RenderContext, onComplete func())

func (f RendererFunc) Render(rc RenderContext, onComplete func()) { f(rc, onComplete) }

// Renderers maps frame types to renderers.
type Renderers map[combatlog.FrameType]Renderer

// Dispatcher presents the player's current item. round_end items are
// bookkeeping only: they are never rendered and the last visible item stays
// on screen while the player moves past them.
type Dispatcher struct {
	renderers Renderers
	visible   *framequeue.Item
}

// New checks that every rendered frame type has a renderer.
func New(renderers Renderers) (*Dispatcher, error) {
	for _, typ := range combatlog.FrameTypes() {
		if typ == combatlog.FrameRoundEnd {
			continue
		}
		if renderers[typ] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingRenderer, typ)
		}
	}
	return &Dispatcher{renderers: renderers}, nil
}

// Visible returns the item currently on screen.
func (d *Dispatcher) Visible() (framequeue.Item, bool) {
	if d.visible == nil {
		return framequeue.Item{}, false
	}
	return *d.visible, true
}

// Present shows p's current item. When it is a round_end the player is
// advanced until a rendered item becomes current; the events of those
// advances are returned so the caller can act on them. onComplete receives
// the id of the item whose renderer finished.
func (d *Dispatcher) Present(p *player.Player, schedule ScheduleFunc, onComplete func(itemID string)) []player.Event {
	var events []player.Event
	for {
		it, ok := p.Current()
		if !ok {
			return events
		}
		if it.Type != combatlog.FrameRoundEnd {
			d.render(p, it, schedule, onComplete)
			return events
		}
		if p.State() != player.Playing {
			return events
		}
		slog.Debug("round end passed through",
			"item", it.ID,
			"round", it.Round)
		events = append(events, p.Next()...)
	}
}

// Reset forgets the visible item.
func (d *Dispatcher) Reset() {
	d.visible = nil
}

func (d *Dispatcher) render(p *player.Player, it framequeue.Item, schedule ScheduleFunc, onComplete func(itemID string)) {
	d.visible = &it
	rc := RenderContext{
		Item:     it,
		Actors:   p.Actors(),
		Health:   p.Health(),
		Effects:  p.Ledger().Snapshot(),
		Speed:    p.Speed(),
		Schedule: schedule,
	}
	d.renderers[it.Type].Render(rc, func() { onComplete(it.ID) })
}
