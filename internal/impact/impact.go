// Package impact turns a structured workout into fatigue, capacity and
// muscle-load signals. Every function is a pure computation over its
// arguments and the rule repository.
package impact

import (
	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/rules"
)

// Result is the aggregate impact of a list of blocks.
type Result struct {
	FatigueTotal float64            `json:"fatigue_total"`
	RawFatigue   float64            `json:"raw_fatigue"`
	Capacities   map[string]float64 `json:"capacities"`
	MuscleLoad   map[string]float64 `json:"muscle_load"`
	MuscleCounts map[string]int     `json:"muscle_counts"`
	Warnings     []string           `json:"warnings"`
	Blocks       []BlockImpact      `json:"blocks"`
}

// BlockImpact mirrors one input block with the executions it expanded into.
type BlockImpact struct {
	Index     int              `json:"index"`
	ID        string           `json:"id,omitempty"`
	Title     string           `json:"title,omitempty"`
	Kind      models.BlockKind `json:"kind"`
	Fatigue   float64          `json:"fatigue"`
	Movements []MovementImpact `json:"movements"`
}

// MovementImpact explains the fatigue contribution of one execution.
type MovementImpact struct {
	Name                string     `json:"name"`
	Rest                bool       `json:"rest,omitempty"`
	Known               bool       `json:"known"`
	Quantity            float64    `json:"quantity"`
	Unit                rules.Unit `json:"unit"`
	WorkScore           float64    `json:"work_score"`
	IntensityMultiplier float64    `json:"intensity_multiplier"`
	MusclePenalty       float64    `json:"muscle_penalty"`
	ExecutionMultiplier float64    `json:"execution_multiplier"`
	Fatigue             float64    `json:"fatigue"`
	Muscle              string     `json:"muscle,omitempty"`
}

// Compute expands every block and folds the executions, in order, into a
// new Result. Identical input yields an identical Result.
func Compute(repo rules.Repository, blocks []models.Block, level float64) Result {
	acc := newAccumulator()
	breakdown := make([]BlockImpact, 0, len(blocks))

	for i, b := range blocks {
		if b == nil {
			continue
		}
		h := b.Header()
		bi := BlockImpact{
			Index:     i,
			ID:        h.ID,
			Title:     h.Title,
			Kind:      b.Kind(),
			Movements: []MovementImpact{},
		}
		for _, m := range Expand(b, repo, level) {
			mi := acc.add(repo, m, level)
			bi.Fatigue += mi.Fatigue
			bi.Movements = append(bi.Movements, mi)
		}
		breakdown = append(breakdown, bi)
	}

	warnings := make([]string, len(acc.warnings))
	copy(warnings, acc.warnings)

	return Result{
		FatigueTotal: clamp(acc.rawFatigue, 0, MaxFatigue),
		RawFatigue:   acc.rawFatigue,
		Capacities:   acc.capacities,
		MuscleLoad:   acc.muscleLoad,
		MuscleCounts: acc.muscleCounts,
		Warnings:     warnings,
		Blocks:       breakdown,
	}
}
