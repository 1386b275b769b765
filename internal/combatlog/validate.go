package combatlog

import (
	"errors"
	"fmt"
)

// ErrMalformedLog matches every MalformedLogError via errors.Is.
var ErrMalformedLog = errors.New("malformed combat log")

// MalformedLogError reports a structural invariant violated by a combat log.
// The session cannot be played; the caller has to refetch the log.
type MalformedLogError struct {
	Reason string
	Path   string // location inside the log, e.g. "rounds[2].actions[0].frames[1]"
	Err    error
}

func (e *MalformedLogError) Error() string {
	msg := "malformed combat log: " + e.Reason
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedLogError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedLog) hold for any MalformedLogError.
func (e *MalformedLogError) Is(target error) bool { return target == ErrMalformedLog }

func malformed(path, format string, args ...any) error {
	return &MalformedLogError{Reason: fmt.Sprintf(format, args...), Path: path}
}

// Validate checks the structural invariants playback relies on:
//   - at least one round, round numbers 1-based and strictly increasing
//   - totalRounds, when set, equals the number of rounds
//   - actor ids and action ids are unique
//   - every actor id referenced by an action, result, tick or death frame exists
//   - exactly one end_battle frame, and it is the last frame of the log
func Validate(l *CombatLog) error {
	if l == nil {
		return malformed("", "nil log")
	}
	if len(l.Rounds) == 0 {
		return malformed("rounds", "log has no rounds")
	}
	if l.TotalRounds != 0 && l.TotalRounds != len(l.Rounds) {
		return malformed("totalRounds", "totalRounds %d does not match %d rounds", l.TotalRounds, len(l.Rounds))
	}

	actors := make(map[string]struct{}, len(l.Actors))
	for i, a := range l.Actors {
		if a.ID == "" {
			return malformed(fmt.Sprintf("actors[%d]", i), "actor without id")
		}
		if _, dup := actors[a.ID]; dup {
			return malformed(fmt.Sprintf("actors[%d]", i), "duplicate actor id %q", a.ID)
		}
		actors[a.ID] = struct{}{}
	}

	v := validator{actors: actors, actions: make(map[string]struct{})}
	prevRound := 0
	for ri, r := range l.Rounds {
		rpath := fmt.Sprintf("rounds[%d]", ri)
		if r.Number <= prevRound {
			return malformed(rpath, "round number %d is not greater than %d", r.Number, prevRound)
		}
		prevRound = r.Number

		for ai, a := range r.Actions {
			apath := fmt.Sprintf("%s.actions[%d]", rpath, ai)
			if err := v.action(apath, a); err != nil {
				return err
			}
		}
		for fi, f := range r.EndFrames {
			if err := v.frame(fmt.Sprintf("%s.endFrames[%d]", rpath, fi), f); err != nil {
				return err
			}
		}
	}

	if v.endBattles == 0 {
		return malformed("", "log has no end_battle frame")
	}
	if v.endBattles > 1 {
		return malformed(v.lastPath, "log has %d end_battle frames", v.endBattles)
	}
	if v.last == nil || v.last.Type() != FrameEndBattle {
		return malformed(v.lastPath, "last frame is not end_battle")
	}
	return nil
}

type validator struct {
	actors     map[string]struct{}
	actions    map[string]struct{}
	endBattles int
	last       Frame
	lastPath   string
}

func (v *validator) actor(path, id string) error {
	if _, ok := v.actors[id]; !ok {
		return malformed(path, "unknown actor id %q", id)
	}
	return nil
}

func (v *validator) action(path string, a Action) error {
	if a.ID == "" {
		return malformed(path, "action without id")
	}
	if _, dup := v.actions[a.ID]; dup {
		return malformed(path, "duplicate action id %q", a.ID)
	}
	v.actions[a.ID] = struct{}{}

	if err := v.actor(path+".actorId", a.ActorID); err != nil {
		return err
	}
	for i, t := range a.Targets {
		if err := v.actor(fmt.Sprintf("%s.targets[%d]", path, i), t); err != nil {
			return err
		}
	}
	for i, f := range a.Frames {
		if err := v.frame(fmt.Sprintf("%s.frames[%d]", path, i), f); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) frame(path string, f Frame) error {
	if f == nil {
		return malformed(path, "empty frame")
	}
	v.last = f
	v.lastPath = path

	switch fr := f.(type) {
	case ActionFrame:
		for i, res := range fr.Results {
			if err := v.actor(fmt.Sprintf("%s.results[%d]", path, i), res.TargetID); err != nil {
				return err
			}
		}
	case RoundEndFrame:
		return v.ticks(path+".statusTicks", fr.StatusTicks)
	case StatusTickFrame:
		return v.ticks(path+".ticks", fr.Ticks)
	case DeathFrame:
		for i, t := range fr.Targets {
			if err := v.actor(fmt.Sprintf("%s.targets[%d]", path, i), t); err != nil {
				return err
			}
		}
	case EndBattleFrame:
		v.endBattles++
		if !fr.Outcome.Valid() {
			return malformed(path, "unknown outcome %q", fr.Outcome)
		}
	default:
		return malformed(path, "unknown frame %T", f)
	}
	return nil
}

func (v *validator) ticks(path string, ticks []StatusTick) error {
	for i, t := range ticks {
		if err := v.actor(fmt.Sprintf("%s[%d]", path, i), t.TargetID); err != nil {
			return err
		}
	}
	return nil
}
