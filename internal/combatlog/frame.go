package combatlog

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// FrameType discriminates the closed set of frame variants.
type FrameType string

const (
	FrameAction     FrameType = "action"
	FrameRoundEnd   FrameType = "round_end"
	FrameStatusTick FrameType = "status_tick"
	FrameDeath      FrameType = "death"
	FrameEndBattle  FrameType = "end_battle"
)

// FrameTypes lists every frame variant in declaration order.
func FrameTypes() []FrameType {
	return []FrameType{FrameAction, FrameRoundEnd, FrameStatusTick, FrameDeath, FrameEndBattle}
}

// Frame is the smallest authoritative unit of a combat log.
// Implemented only by the variant types of this package.
type Frame interface {
	Type() FrameType
	isFrame()
}

// ResultKind tells whether a target result removed or restored HP.
type ResultKind string

const (
	ResultDamage ResultKind = "damage"
	ResultHeal   ResultKind = "heal"
)

// StatusApplication is a status newly applied to a target by an action.
// Name and Category are optional hints for statuses the client has no
// definition for.
type StatusApplication struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Stacks   int    `json:"stacks" yaml:"stacks"`
	Duration int    `json:"duration" yaml:"duration"`
}

// TargetResult is the effect of an action frame on one target.
type TargetResult struct {
	TargetID      string              `json:"targetId" yaml:"targetId"`
	Kind          ResultKind          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Amount        int                 `json:"amount" yaml:"amount"`
	Crit          bool                `json:"crit,omitempty" yaml:"crit,omitempty"`
	HPBefore      int                 `json:"hpBefore" yaml:"hpBefore"`
	HPAfter       int                 `json:"hpAfter" yaml:"hpAfter"`
	Kill          bool                `json:"kill,omitempty" yaml:"kill,omitempty"`
	StatusApplied []StatusApplication `json:"statusApplied,omitempty" yaml:"statusApplied,omitempty"`
}

// StatusTick is the periodic resolution of one status on one target.
type StatusTick struct {
	StatusID      string `json:"statusId" yaml:"statusId"`
	TargetID      string `json:"targetId" yaml:"targetId"`
	Amount        int    `json:"amount" yaml:"amount"`
	HPBefore      int    `json:"hpBefore" yaml:"hpBefore"`
	HPAfter       int    `json:"hpAfter" yaml:"hpAfter"`
	StacksBefore  int    `json:"stacksBefore" yaml:"stacksBefore"`
	DurationAfter int    `json:"durationAfter" yaml:"durationAfter"`
	Expired       bool   `json:"expired,omitempty" yaml:"expired,omitempty"`
	Lethal        bool   `json:"lethal,omitempty" yaml:"lethal,omitempty"`
}

// ActionFrame carries per-target results of an action.
type ActionFrame struct {
	Results []TargetResult `json:"results" yaml:"results"`
}

// RoundEndFrame closes a round and carries the status ticks resolved at the
// round boundary.
type RoundEndFrame struct {
	StatusTicks []StatusTick `json:"statusTicks,omitempty" yaml:"statusTicks,omitempty"`
}

// StatusTickFrame is a stand-alone status resolution outside the round end.
type StatusTickFrame struct {
	Ticks []StatusTick `json:"ticks" yaml:"ticks"`
}

// DeathFrame marks actors as dead.
type DeathFrame struct {
	Targets []string `json:"targets" yaml:"targets"`
	Cause   string   `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// EndBattleFrame is the terminal frame of the log.
type EndBattleFrame struct {
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Rewards Rewards `json:"rewards" yaml:"rewards"`
}

func (ActionFrame) Type() FrameType     { return FrameAction }
func (RoundEndFrame) Type() FrameType   { return FrameRoundEnd }
func (StatusTickFrame) Type() FrameType { return FrameStatusTick }
func (DeathFrame) Type() FrameType      { return FrameDeath }
func (EndBattleFrame) Type() FrameType  { return FrameEndBattle }

func (ActionFrame) isFrame()     {}
func (RoundEndFrame) isFrame()   {}
func (StatusTickFrame) isFrame() {}
func (DeathFrame) isFrame()      {}
func (EndBattleFrame) isFrame()  {}

// marshalFrame encodes f with a leading "type" discriminator.
func marshalFrame(f Frame) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+24)
	out = append(out, `{"type":"`...)
	out = append(out, string(f.Type())...)
	out = append(out, '"')
	if len(body) > 2 {
		out = append(out, ',')
	}
	return append(out, body[1:]...), nil
}

// FrameList is an ordered list of frames decoded by their "type" field.
type FrameList []Frame

type frameHead struct {
	Type FrameType `json:"type" yaml:"type"`
}

// decodeFrame builds the concrete variant for typ using decode to fill it.
func decodeFrame(typ FrameType, decode func(v any) error) (Frame, error) {
	switch typ {
	case FrameAction:
		var f ActionFrame
		err := decode(&f)
		return f, err
	case FrameRoundEnd:
		var f RoundEndFrame
		err := decode(&f)
		return f, err
	case FrameStatusTick:
		var f StatusTickFrame
		err := decode(&f)
		return f, err
	case FrameDeath:
		var f DeathFrame
		err := decode(&f)
		return f, err
	case FrameEndBattle:
		var f EndBattleFrame
		err := decode(&f)
		return f, err
	default:
		return nil, &MalformedLogError{Reason: fmt.Sprintf("unknown frame type %q", typ)}
	}
}

// UnmarshalJSON decodes each element by its "type" discriminator.
func (l *FrameList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	out := make(FrameList, 0, len(raws))
	for i, raw := range raws {
		var head frameHead
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		f, err := decodeFrame(head.Type, func(v any) error { return json.Unmarshal(raw, v) })
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		out = append(out, f)
	}
	*l = out
	return nil
}

// MarshalJSON writes the list, each frame carrying its discriminator.
func (l FrameList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := marshalFrame(f)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes each sequence element by its "type" key.
func (l *FrameList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: frames must be a sequence", value.Line)
	}

	out := make(FrameList, 0, len(value.Content))
	for i, node := range value.Content {
		var head frameHead
		if err := node.Decode(&head); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		f, err := decodeFrame(head.Type, node.Decode)
		if err != nil {
			return fmt.Errorf("frame %d (line %d): %w", i, node.Line, err)
		}
		out = append(out, f)
	}
	*l = out
	return nil
}
