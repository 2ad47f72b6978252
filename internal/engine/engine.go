// Package engine runs the full impact pipeline over a workout and builds
// the payload the authoring layer submits alongside it.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/claude/wodpulse/internal/capacity"
	"github.com/claude/wodpulse/internal/hyrox"
	"github.com/claude/wodpulse/internal/impact"
	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/rules"
	"github.com/claude/wodpulse/internal/xp"
)

// Engine bundles the rule repository and capacity model. It holds no
// mutable state, so one Engine can serve concurrent callers.
type Engine struct {
	rules        rules.Repository
	capacity     capacity.Model
	defaultLevel float64
}

// New creates an Engine. A nil repository uses the embedded rule table and
// a non-positive default level becomes 1.
func New(repo rules.Repository, model capacity.Model, defaultLevel float64) *Engine {
	if repo == nil {
		repo = rules.Default()
	}
	if defaultLevel <= 0 {
		defaultLevel = 1
	}
	return &Engine{rules: repo, capacity: model, defaultLevel: defaultLevel}
}

// Rules returns the rule repository the engine evaluates with.
func (e *Engine) Rules() rules.Repository {
	return e.rules
}

// Level picks the athlete level: the explicit level, then the workout's
// own level, then the engine default.
func (e *Engine) Level(w models.Workout, level float64) float64 {
	switch {
	case level > 0:
		return level
	case w.AthleteLevel > 0:
		return w.AthleteLevel.Float()
	default:
		return e.defaultLevel
	}
}

// ComputeImpact aggregates the impact of blocks at the given level.
func (e *Engine) ComputeImpact(blocks []models.Block, level float64) impact.Result {
	if level <= 0 {
		level = e.defaultLevel
	}
	return impact.Compute(e.rules, blocks, level)
}

// FindMovementRule looks a movement up without falling back to the default rule.
func (e *Engine) FindMovementRule(name string) (rules.MovementRule, bool) {
	return e.rules.Lookup(name)
}

// Catalog lists every rule of the repository sorted by name. A repository
// that cannot enumerate its rules yields an empty catalog.
func (e *Engine) Catalog() []rules.MovementRule {
	lister, ok := e.rules.(interface{ Names() []string })
	if !ok {
		return []rules.MovementRule{}
	}
	names := lister.Names()
	out := make([]rules.MovementRule, 0, len(names))
	for _, n := range names {
		if r, ok := e.rules.Lookup(n); ok {
			out = append(out, r)
		}
	}
	return out
}

// SupportsTime reports whether the movement takes a target time.
func (e *Engine) SupportsTime(name string) bool {
	return rules.SupportsTime(e.rules, name)
}

// HyroxTransfer scores a loose workout view.
func (e *Engine) HyroxTransfer(w hyrox.WorkoutLike) hyrox.Result {
	return hyrox.Score(w)
}

// EstimateXP maps fatigue on the 0-10 scale to XP. A non-positive level
// uses the engine default.
func (e *Engine) EstimateXP(fatigue, level float64) xp.Estimate {
	if level <= 0 {
		level = e.defaultLevel
	}
	return xp.Compute(fatigue, level)
}

// NormalizeCapacity normalizes one raw capacity score.
func (e *Engine) NormalizeCapacity(raw float64, key string, level float64, mode capacity.Mode) capacity.Result {
	return e.capacity.Normalize(raw, key, level, mode)
}

// NormalizeCapacities maps raw capacity records to display items.
func (e *Engine) NormalizeCapacities(records []capacity.Record, level float64, mode capacity.Mode) []capacity.DisplayItem {
	return e.capacity.MapRecords(records, level, mode)
}

// Evaluation is the result of running the whole pipeline once.
type Evaluation struct {
	Title        string        `json:"title"`
	AthleteLevel float64       `json:"athlete_level"`
	Impact       impact.Result `json:"impact"`
	Hyrox        hyrox.Result  `json:"hyrox"`
	XP           xp.Estimate   `json:"xp"`
	Payload      SubmitPayload `json:"payload"`
}

// CapacityLoad is one entry of the submitted capacities array.
type CapacityLoad struct {
	Capacity string  `json:"capacity"`
	Value    float64 `json:"value"`
}

// SubmitPayload is what the authoring layer stores with a saved workout.
type SubmitPayload struct {
	Title           string             `json:"title"`
	Difficulty      float64            `json:"difficulty"`
	Capacities      []CapacityLoad     `json:"capacities"`
	MuscleTags      []string           `json:"muscle_tags"`
	XPEstimate      int                `json:"xp_estimate"`
	HyroxScore      int                `json:"hyrox_transfer_score"`
	HyroxComponents map[string]float64 `json:"hyrox_components"`
	Warnings        []string           `json:"warnings"`
}

// Evaluate computes impact, HYROX transfer and XP for a workout and
// assembles the submit payload. A level of 0 defers to Level.
func (e *Engine) Evaluate(w models.Workout, level float64) Evaluation {
	lvl := e.Level(w, level)
	res := impact.Compute(e.rules, w.Blocks, lvl)
	hx := hyrox.Score(hyrox.FromWorkout(w))
	est := xp.Compute(res.FatigueTotal, lvl)

	return Evaluation{
		Title:        w.Title,
		AthleteLevel: lvl,
		Impact:       res,
		Hyrox:        hx,
		XP:           est,
		Payload: SubmitPayload{
			Title:           w.Title,
			Difficulty:      math.Round(res.FatigueTotal*10) / 10,
			Capacities:      capacityLoads(res.Capacities),
			MuscleTags:      muscleTags(res.MuscleLoad),
			XPEstimate:      est.XP,
			HyroxScore:      hx.TransferScore,
			HyroxComponents: hx.Components,
			Warnings:        res.Warnings,
		},
	}
}

// Snapshot converts the evaluation into a storable row for the user. The
// row ID is left zero so the store assigns one.
func (ev Evaluation) Snapshot(userID int) (models.SnapshotRow, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return models.SnapshotRow{}, fmt.Errorf("encoding evaluation: %w", err)
	}
	return models.SnapshotRow{
		UserID:       userID,
		Title:        ev.Title,
		AthleteLevel: ev.AthleteLevel,
		FatigueTotal: ev.Impact.FatigueTotal,
		RawFatigue:   ev.Impact.RawFatigue,
		XP:           ev.XP.XP,
		HyroxScore:   ev.Hyrox.TransferScore,
		Payload:      payload,
	}, nil
}

// capacityLoads sorts capacities by load, highest first, then by name.
func capacityLoads(m map[string]float64) []CapacityLoad {
	out := make([]CapacityLoad, 0, len(m))
	for k, v := range m {
		out = append(out, CapacityLoad{Capacity: k, Value: math.Round(v*100) / 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Capacity < out[j].Capacity
	})
	return out
}

// muscleTags lists loaded muscles, highest load first. The generic group
// of unknown movements is not a real muscle and is left out.
func muscleTags(load map[string]float64) []string {
	type kv struct {
		muscle string
		load   float64
	}
	sorted := make([]kv, 0, len(load))
	for k, v := range load {
		if k == rules.GenericMuscle || v <= 0 {
			continue
		}
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].load != sorted[j].load {
			return sorted[i].load > sorted[j].load
		}
		return sorted[i].muscle < sorted[j].muscle
	})

	tags := make([]string, len(sorted))
	for i, s := range sorted {
		tags[i] = s.muscle
	}
	return tags
}
