// Package xp estimates the XP reward for a session from its fatigue.
package xp

import "math"

const (
	minXP       = 40.0
	maxXP       = 600.0
	curve       = 1.3
	maxFatigue  = 10.0
	factorStart = 1.15
	factorSlope = 0.01
	minFactor   = 0.65
	maxFactor   = 1.15
)

// Estimate is an XP reward with the intermediate values that produced it.
type Estimate struct {
	XP          int     `json:"xp"`
	XPBase      float64 `json:"xp_base"`
	LevelFactor float64 `json:"level_factor"`
	FatigueNorm float64 `json:"fatigue_norm"`
}

// Compute maps fatigue on the 0-10 scale and an athlete level to XP. The
// convex curve rewards hard sessions disproportionately; the level factor
// shrinks the reward as athletes progress.
func Compute(fatigue, level float64) Estimate {
	norm := clamp(fatigue/maxFatigue, 0, 1)
	if math.IsNaN(norm) {
		norm = 0
	}
	base := minXP + (maxXP-minXP)*math.Pow(norm, curve)
	factor := LevelFactor(level)
	return Estimate{
		XP:          int(math.Round(base * factor)),
		XPBase:      base,
		LevelFactor: factor,
		FatigueNorm: norm,
	}
}

// LevelFactor is clamp(1.15 - 0.01*level, 0.65, 1.15).
func LevelFactor(level float64) float64 {
	if math.IsNaN(level) {
		return maxFactor
	}
	return clamp(factorStart-factorSlope*level, minFactor, maxFactor)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
