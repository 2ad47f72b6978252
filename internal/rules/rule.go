package rules

import (
	"sort"

	"github.com/claude/wodpulse/internal/models"
)

// Unit is the workload quantity a rule is expressed in.
type Unit string

const (
	UnitReps     Unit = "reps"
	UnitMeters   Unit = "meters"
	UnitCalories Unit = "calories"
	UnitSeconds  Unit = "seconds"
)

// GenericMuscle is the muscle group of movements without a rule.
const GenericMuscle = "generic"

// MovementRule is the static computation rule for one movement.
type MovementRule struct {
	Name             string             `json:"name,omitempty"`
	BaseUnit         Unit               `json:"base_unit"`
	BaseValue        float64            `json:"base_value"`
	BaseScore        float64            `json:"base_score"`
	Exponent         float64            `json:"exponent"`
	SupportsTime     bool               `json:"supports_time,omitempty"`
	ProTimeSeconds   float64            `json:"pro_time_seconds,omitempty"`
	LevelTimeFactors map[int]float64    `json:"level_time_factors,omitempty"`
	MainMuscle       string             `json:"main_muscle"`
	CapacityWeights  map[string]float64 `json:"capacity_weights"`
}

// DefaultRule is applied to movements missing from the table so every
// movement still produces some signal.
func DefaultRule() MovementRule {
	return MovementRule{
		BaseUnit:        UnitReps,
		BaseValue:       10,
		BaseScore:       1,
		Exponent:        0.9,
		MainMuscle:      GenericMuscle,
		CapacityWeights: map[string]float64{"metcon": 0.5},
	}
}

// LevelFactor returns the pacing factor for an athlete level. The factors
// form a step function: the highest threshold not above level wins, and
// levels below every threshold use the lowest threshold's factor. A rule
// without factors scales by 1.
func (r MovementRule) LevelFactor(level float64) float64 {
	if len(r.LevelTimeFactors) == 0 {
		return 1
	}

	thresholds := make([]int, 0, len(r.LevelTimeFactors))
	for k := range r.LevelTimeFactors {
		thresholds = append(thresholds, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(thresholds)))

	for _, t := range thresholds {
		if float64(t) <= level {
			return r.LevelTimeFactors[t]
		}
	}
	return r.LevelTimeFactors[thresholds[len(thresholds)-1]]
}

// ExpectedTime is the level-adjusted completion time for pacing-aware
// movements, or 0 when the rule has no pacing model.
func (r MovementRule) ExpectedTime(level float64) float64 {
	if !r.SupportsTime || r.ProTimeSeconds <= 0 {
		return 0
	}
	return r.ProTimeSeconds * r.LevelFactor(level)
}

// Quantity is a resolved workload amount and the unit it was read from.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// fallbackOrder is the field priority used when the rule's unit is empty.
var fallbackOrder = []Unit{UnitReps, UnitMeters, UnitCalories, UnitSeconds}

// ResolveQuantity reads the execution field named by the rule's unit. When
// that field is empty it falls back through reps, meters, calories and
// seconds, reporting the unit actually used. An execution with no
// populated field resolves to zero in the rule's unit.
func ResolveQuantity(rule MovementRule, m models.MovementExecution) Quantity {
	if v := fieldFor(rule.BaseUnit, m); v > 0 {
		return Quantity{Value: v, Unit: rule.BaseUnit}
	}
	for _, u := range fallbackOrder {
		if v := fieldFor(u, m); v > 0 {
			return Quantity{Value: v, Unit: u}
		}
	}
	return Quantity{Unit: rule.BaseUnit}
}

func fieldFor(u Unit, m models.MovementExecution) float64 {
	switch u {
	case UnitReps:
		return m.Reps.Float()
	case UnitMeters:
		return m.DistanceMeters.Float()
	case UnitCalories:
		return m.Calories.Float()
	case UnitSeconds:
		return m.DurationSeconds.Float()
	default:
		return 0
	}
}
