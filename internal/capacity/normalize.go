// Package capacity converts raw capacity scores into percentages of a
// level-scaled expectation.
package capacity

import (
	"math"
	"strings"
)

// Mode selects the expectation a raw score is compared against.
type Mode string

const (
	// ModeLevel compares against the athlete's current level.
	ModeLevel Mode = "level"
	// ModeNextLevel compares against the level above.
	ModeNextLevel Mode = "next_level"
	// ModeGlobal compares against the stretched elite reference.
	ModeGlobal Mode = "global"
)

// ParseMode maps a mode string to a Mode; unknown values mean ModeLevel.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNextLevel, "next", "nextlevel":
		return ModeNextLevel
	case ModeGlobal:
		return ModeGlobal
	default:
		return ModeLevel
	}
}

// Canonical capacity ids.
const (
	Endurance  = "endurance"
	Strength   = "strength"
	Power      = "power"
	Metcon     = "metcon"
	Gymnastics = "gymnastics"
	Speed      = "speed"
)

// Model holds the expectation curve parameters.
type Model struct {
	Baselines      map[string]float64
	Order          []string
	Fallback       float64
	EliteLevel     float64
	GrowthPerLevel float64
	GlobalStretch  float64
}

// DefaultModel returns the standard baselines with 8% growth per level,
// elite reference level 50 and a global stretch of 8.
func DefaultModel() Model {
	return Model{
		Baselines: map[string]float64{
			Endurance:  40,
			Strength:   40,
			Power:      35,
			Metcon:     45,
			Gymnastics: 30,
			Speed:      30,
		},
		Order:          []string{Endurance, Strength, Power, Metcon, Gymnastics, Speed},
		Fallback:       35,
		EliteLevel:     50,
		GrowthPerLevel: 0.08,
		GlobalStretch:  8,
	}
}

// Result is a normalized capacity score.
type Result struct {
	Percent  int     `json:"percent"`
	Expected float64 `json:"expected"`
	Known    bool    `json:"is_known"`
}

// Baseline returns the configured baseline for key, or the fallback and
// false when the capacity has no baseline.
func (m Model) Baseline(key string) (float64, bool) {
	if b, ok := m.Baselines[NormalizeKey(key)]; ok {
		return b, true
	}
	return m.Fallback, false
}

// ExpectedAt is baseline * (1 + (level-1) * growth) with level floored at 1.
func (m Model) ExpectedAt(baseline, level float64) float64 {
	if math.IsNaN(level) || level < 1 {
		level = 1
	}
	return baseline * (1 + (level-1)*m.GrowthPerLevel)
}

// Expected returns the expectation for key under mode.
func (m Model) Expected(key string, level float64, mode Mode) (float64, bool) {
	baseline, known := m.Baseline(key)
	if math.IsNaN(level) || level < 1 {
		level = 1
	}
	switch mode {
	case ModeNextLevel:
		return m.ExpectedAt(baseline, level+1), known
	case ModeGlobal:
		return m.ExpectedAt(baseline, m.EliteLevel) * m.GlobalStretch, known
	default:
		return m.ExpectedAt(baseline, level), known
	}
}

// Normalize converts a raw score into a 0-100 percentage of the
// expectation. A non-positive expectation yields 0.
func (m Model) Normalize(raw float64, key string, level float64, mode Mode) Result {
	expected, known := m.Expected(key, level, mode)
	res := Result{Expected: expected, Known: known}
	if expected <= 0 || math.IsNaN(expected) || math.IsNaN(raw) {
		return res
	}
	pct := math.Round(raw / expected * 100)
	res.Percent = int(math.Max(0, math.Min(100, pct)))
	return res
}

// NormalizeKey lower-cases a capacity key and joins words with underscores.
func NormalizeKey(key string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(key, "-", " "))), "_")
}

// WithBaselines returns a copy of the model with the given baselines added
// or replaced. Keys are normalized; non-positive values are ignored.
func (m Model) WithBaselines(overrides map[string]float64) Model {
	baselines := make(map[string]float64, len(m.Baselines)+len(overrides))
	for k, v := range m.Baselines {
		baselines[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			baselines[NormalizeKey(k)] = v
		}
	}
	m.Baselines = baselines
	return m
}
