package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RestMovementName is the canonical name of rest pseudo-movements.
const RestMovementName = "Rest"

// MovementExecution is one concrete occurrence of a movement within a block repetition.
type MovementExecution struct {
	ID                  string `json:"id,omitempty"`
	Name                string `json:"name"`
	Reps                Number `json:"reps,omitempty"`
	DistanceMeters      Number `json:"distance_meters,omitempty"`
	LoadKg              Number `json:"load_kg,omitempty"`
	Calories            Number `json:"calories,omitempty"`
	DurationSeconds     Number `json:"duration_seconds,omitempty"`
	TargetTimeSeconds   Number `json:"target_time_seconds,omitempty"`
	ExecutionMultiplier Number `json:"execution_multiplier,omitempty"`
	Rest                bool   `json:"rest,omitempty"`
}

// IsRest reports whether the execution is a rest pseudo-movement, either
// flagged explicitly or named "rest".
func (m MovementExecution) IsRest() bool {
	return m.Rest || strings.EqualFold(strings.TrimSpace(m.Name), RestMovementName)
}

// Multiplier returns the execution multiplier, treating unset or non-positive values as 1.
func (m MovementExecution) Multiplier() float64 {
	if m.ExecutionMultiplier <= 0 {
		return 1
	}
	return m.ExecutionMultiplier.Float()
}

// Scaled returns a copy with every quantity field multiplied by factor.
func (m MovementExecution) Scaled(factor float64) MovementExecution {
	m.Reps = Number(m.Reps.Float() * factor)
	m.DistanceMeters = Number(m.DistanceMeters.Float() * factor)
	m.Calories = Number(m.Calories.Float() * factor)
	m.DurationSeconds = Number(m.DurationSeconds.Float() * factor)
	return m
}

// NewRest builds a rest pseudo-execution lasting the given number of seconds.
func NewRest(seconds float64) MovementExecution {
	return MovementExecution{
		Name:            RestMovementName,
		DurationSeconds: Number(seconds),
		Rest:            true,
	}
}

// TaskRole tags a task inside an interval scenario.
type TaskRole string

const (
	RoleCap       TaskRole = "CAP"
	RoleStandard  TaskRole = "STANDARD"
	RoleRemaining TaskRole = "REMAINING"
)

// Task references one movement of the enclosing block.
type Task struct {
	ID          string   `json:"id,omitempty"`
	Role        TaskRole `json:"role,omitempty"`
	MovementRef string   `json:"movement_ref,omitempty"`
	Index       *int     `json:"movement_index,omitempty"`
}

// NormalizedRole upper-cases the role; an empty role counts as STANDARD.
func (t Task) NormalizedRole() TaskRole {
	r := TaskRole(strings.ToUpper(strings.TrimSpace(string(t.Role))))
	if r == "" {
		return RoleStandard
	}
	return r
}

// Scenario is a labeled variant of work within a rounds or intervals block.
// WorkSeconds and RestSeconds override the block's values when set.
type Scenario struct {
	Label       string `json:"label"`
	WorkSeconds Number `json:"work_seconds,omitempty"`
	RestSeconds Number `json:"rest_seconds,omitempty"`
	Tasks       []Task `json:"tasks"`
}

// BlockKind discriminates the block variants on the wire.
type BlockKind string

const (
	KindStandard  BlockKind = "standard"
	KindRounds    BlockKind = "rounds"
	KindIntervals BlockKind = "intervals"
)

// Block is one structural unit of a workout. The set of implementations is
// closed: StandardBlock, RoundsBlock and IntervalsBlock.
type Block interface {
	Kind() BlockKind
	Header() BlockHeader
	isBlock()
}

// BlockHeader holds the fields every block variant shares.
type BlockHeader struct {
	ID        string              `json:"id,omitempty"`
	Title     string              `json:"title,omitempty"`
	Notes     string              `json:"notes,omitempty"`
	Movements []MovementExecution `json:"movements"`
}

// StandardBlock repeats its movement list a number of times inferred from its text.
type StandardBlock struct {
	BlockHeader
}

// RoundsBlock walks its scenario sequence a fixed number of rounds.
type RoundsBlock struct {
	BlockHeader
	Rounds    Number     `json:"rounds"`
	Scenarios []Scenario `json:"scenarios,omitempty"`
	Pattern   []string   `json:"pattern,omitempty"`
}

// IntervalsBlock runs each scenario inside a work window followed by rest.
type IntervalsBlock struct {
	BlockHeader
	Rounds      Number     `json:"rounds,omitempty"`
	WorkSeconds Number     `json:"work_seconds"`
	RestSeconds Number     `json:"rest_seconds"`
	Scenarios   []Scenario `json:"scenarios,omitempty"`
	Pattern     []string   `json:"pattern,omitempty"`
}

func (b StandardBlock) Kind() BlockKind      { return KindStandard }
func (b StandardBlock) Header() BlockHeader  { return b.BlockHeader }
func (StandardBlock) isBlock()               {}
func (b RoundsBlock) Kind() BlockKind        { return KindRounds }
func (b RoundsBlock) Header() BlockHeader    { return b.BlockHeader }
func (RoundsBlock) isBlock()                 {}
func (b IntervalsBlock) Kind() BlockKind     { return KindIntervals }
func (b IntervalsBlock) Header() BlockHeader { return b.BlockHeader }
func (IntervalsBlock) isBlock()              {}

// Blocks is an ordered list of blocks encoded as a JSON array of objects
// discriminated by "type". Unknown or missing types decode as standard blocks.
type Blocks []Block

func (bs *Blocks) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decoding blocks: %w", err)
	}

	out := make(Blocks, 0, len(raws))
	for i, raw := range raws {
		b, err := decodeBlock(raw)
		if err != nil {
			return fmt.Errorf("decoding block %d: %w", i, err)
		}
		out = append(out, b)
	}
	*bs = out
	return nil
}

func (bs Blocks) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(bs))
	for _, b := range bs {
		switch v := b.(type) {
		case StandardBlock:
			out = append(out, struct {
				Type BlockKind `json:"type"`
				StandardBlock
			}{KindStandard, v})
		case RoundsBlock:
			out = append(out, struct {
				Type BlockKind `json:"type"`
				RoundsBlock
			}{KindRounds, v})
		case IntervalsBlock:
			out = append(out, struct {
				Type BlockKind `json:"type"`
				IntervalsBlock
			}{KindIntervals, v})
		}
	}
	return json.Marshal(out)
}

func decodeBlock(raw json.RawMessage) (Block, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch BlockKind(strings.ToLower(strings.TrimSpace(probe.Type))) {
	case KindRounds:
		var b RoundsBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case KindIntervals:
		var b IntervalsBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		var b StandardBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Workout is a complete authored workout as sent by the authoring layer.
type Workout struct {
	Title         string `json:"title"`
	Intensity     string `json:"intensity,omitempty"`
	WorkRestRatio string `json:"work_rest_ratio,omitempty"`
	AthleteLevel  Number `json:"athlete_level,omitempty"`
	Blocks        Blocks `json:"blocks"`
}
