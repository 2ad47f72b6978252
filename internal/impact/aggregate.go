package impact

import (
	"fmt"
	"math"

	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/rules"
)

const (
	// MaxFatigue is the upper bound of the reported fatigue total.
	MaxFatigue = 10.0
	// OverloadCount is the same-muscle count at which a warning is raised.
	OverloadCount = 4
	// restRecoveryPerMinute is subtracted from raw fatigue per minute of rest.
	restRecoveryPerMinute = 0.5

	minIntensity = 0.8
	maxIntensity = 1.5

	// maxMagnitude bounds every per-execution figure so sums stay finite
	// and the result always encodes as JSON.
	maxMagnitude = 1e9
)

// bounded maps NaN to 0 and clamps v to [-maxMagnitude, maxMagnitude].
func bounded(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, -maxMagnitude, maxMagnitude)
}

// MusclePenalty returns the multiplier for the n-th execution hitting the
// same muscle group within one workout.
func MusclePenalty(count int) float64 {
	switch {
	case count <= 1:
		return 1
	case count == 2:
		return 1.10
	case count == 3:
		return 1.25
	default:
		return 1.50
	}
}

// IntensityMultiplier compares the target time with the level-adjusted
// expected time. Beating the expectation raises the multiplier, finishing
// slower lowers it, bounded to [0.8, 1.5]. Movements without a pacing model
// or without a target time return 1.
func IntensityMultiplier(rule rules.MovementRule, targetSeconds, level float64) float64 {
	if targetSeconds <= 0 {
		return 1
	}
	expected := rule.ExpectedTime(level)
	if expected <= 0 {
		return 1
	}
	return clamp(expected/targetSeconds, minIntensity, maxIntensity)
}

// WorkScore is (quantity / base_value)^exponent scaled by base_score.
func WorkScore(rule rules.MovementRule, quantity float64) float64 {
	if quantity <= 0 || rule.BaseValue <= 0 || rule.Exponent <= 0 {
		return 0
	}
	return math.Pow(quantity/rule.BaseValue, rule.Exponent) * rule.BaseScore
}

// accumulator is the fold state threaded through one Compute call.
type accumulator struct {
	rawFatigue   float64
	capacities   map[string]float64
	muscleLoad   map[string]float64
	muscleCounts map[string]int
	warnings     []string
	warningAt    map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{
		capacities:   make(map[string]float64),
		muscleLoad:   make(map[string]float64),
		muscleCounts: make(map[string]int),
		warningAt:    make(map[string]int),
	}
}

// add folds one execution into the accumulator and returns its breakdown entry.
func (a *accumulator) add(repo rules.Repository, m models.MovementExecution, level float64) MovementImpact {
	if m.IsRest() {
		seconds := bounded(m.DurationSeconds.Float())
		if seconds < 0 {
			seconds = 0
		}
		fatigue := -restRecoveryPerMinute * seconds / 60
		a.rawFatigue += fatigue
		return MovementImpact{
			Name:                m.Name,
			Rest:                true,
			Quantity:            seconds,
			Unit:                rules.UnitSeconds,
			IntensityMultiplier: 1,
			MusclePenalty:       1,
			ExecutionMultiplier: 1,
			Fatigue:             fatigue,
		}
	}

	rule, known := repoLookup(repo, m.Name)
	q := rules.ResolveQuantity(rule, m)
	q.Value = bounded(q.Value)
	work := bounded(WorkScore(rule, q.Value))
	intensity := IntensityMultiplier(rule, m.TargetTimeSeconds.Float(), level)

	muscle := rule.MainMuscle
	a.muscleCounts[muscle]++
	count := a.muscleCounts[muscle]
	penalty := MusclePenalty(count)
	mult := bounded(m.Multiplier())

	fatigue := bounded(work * intensity * penalty * mult)
	a.rawFatigue += fatigue
	a.muscleLoad[muscle] += fatigue
	for capacity, weight := range rule.CapacityWeights {
		a.capacities[capacity] += fatigue * weight
	}

	if count >= OverloadCount {
		a.warn(muscle, count)
	}

	return MovementImpact{
		Name:                m.Name,
		Known:               known,
		Quantity:            q.Value,
		Unit:                q.Unit,
		WorkScore:           work,
		IntensityMultiplier: intensity,
		MusclePenalty:       penalty,
		ExecutionMultiplier: mult,
		Fatigue:             fatigue,
		Muscle:              muscle,
	}
}

// warn keeps a single overload warning per muscle, refreshed with the latest count.
func (a *accumulator) warn(muscle string, count int) {
	msg := fmt.Sprintf("Muscle group %q hit %d times: consider spreading the load", muscle, count)
	if i, ok := a.warningAt[muscle]; ok {
		a.warnings[i] = msg
		return
	}
	a.warningAt[muscle] = len(a.warnings)
	a.warnings = append(a.warnings, msg)
}

func repoLookup(repo rules.Repository, name string) (rules.MovementRule, bool) {
	if repo != nil {
		if r, ok := repo.Lookup(name); ok {
			return r, true
		}
	}
	return rules.DefaultRule(), false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
