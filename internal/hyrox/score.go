// Package hyrox scores how closely a workout transfers to the HYROX race
// format: eight stations separated by 1 km runs.
package hyrox

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Component keys, in explanation order.
const (
	KeyRunning         = "running"
	KeySledPush        = "sled_push"
	KeySledPull        = "sled_pull"
	KeySkiErg          = "ski_erg"
	KeyRow             = "row"
	KeyFarmersCarry    = "farmers_carry"
	KeySandbagLunges   = "sandbag_lunges"
	KeyWallBalls       = "wall_balls"
	KeyBurpeeBroadJump = "burpee_broad_jump"
	KeyVolume          = "volume"
	KeyWorkRest        = "work_rest"
	KeyIntensity       = "intensity"
)

const (
	runningWeight   = 20.0
	raceRunMeters   = 8000.0
	volumeDivisor   = 500.0
	maxVolumeBonus  = 10.0
	repVolume       = 5.0
	secondVolume    = 2.0
	denseRatioBonus = 3.0
	restRatioMalus  = -2.0
	highIntensity   = 5.0
	mediumIntensity = 3.0
)

// station is one binary race element, matched by whole-word phrases.
type station struct {
	key      string
	label    string
	weight   float64
	phrases  []string
	excludes []string
}

var stations = []station{
	{key: KeySledPush, label: "Sled push", weight: 10, phrases: []string{"sled push", "sled pushes"}},
	{key: KeySledPull, label: "Sled pull", weight: 10, phrases: []string{"sled pull", "sled pulls", "sled drag"}},
	{key: KeySkiErg, label: "Ski erg", weight: 10, phrases: []string{"ski erg", "skierg", "ski"}},
	{
		key: KeyRow, label: "Row", weight: 10,
		phrases:  []string{"row", "rowing", "rower", "rowerg", "concept2"},
		excludes: []string{"upright", "barbell", "bb", "ring", "rings", "dumbbell", "db", "bent", "renegade", "pendlay", "kettlebell", "kb", "cable", "seated", "inverted"},
	},
	{key: KeyFarmersCarry, label: "Farmers carry", weight: 8, phrases: []string{"farmer", "farmers", "farmer carry", "farmers carry"}},
	{key: KeySandbagLunges, label: "Sandbag lunges", weight: 8, phrases: []string{"lunge", "lunges"}},
	{key: KeyWallBalls, label: "Wall balls", weight: 8, phrases: []string{"wall ball", "wall balls", "wallball", "wallballs"}},
	{key: KeyBurpeeBroadJump, label: "Burpee broad jump", weight: 8, phrases: []string{"burpee broad jump", "burpee broad jumps", "bbj", "bbjs"}},
}

var runningPhrases = []string{"run", "runs", "running", "jog", "jogging", "sprint", "sprints"}

// Result is the transfer score with its per-component points.
type Result struct {
	TransferScore int                `json:"transfer_score"`
	Components    map[string]float64 `json:"components"`
	Explanation   []string           `json:"explanation"`
}

type volume struct {
	runMeters float64
	reps      float64
	meters    float64
	seconds   float64
	present   map[string]bool
}

// Score computes the HYROX transfer of a workout. Running distance scores
// proportionally up to its weight; other stations score when present.
// Volume, work/rest ratio and intensity label adjust the total, which is
// clamped to [0, 100] and rounded.
func Score(w WorkoutLike) Result {
	v := collect(w)
	components := make(map[string]float64, len(stations)+4)
	var explanation []string
	var total float64

	runPts := math.Min(v.runMeters/raceRunMeters*runningWeight, runningWeight)
	components[KeyRunning] = runPts
	if runPts > 0 {
		total += runPts
		explanation = append(explanation, fmt.Sprintf("Running %.0f m: +%.1f", v.runMeters, runPts))
	}

	for _, s := range stations {
		if !v.present[s.key] {
			components[s.key] = 0
			continue
		}
		components[s.key] = s.weight
		total += s.weight
		explanation = append(explanation, fmt.Sprintf("%s station: +%.0f", s.label, s.weight))
	}

	raw := v.reps*repVolume + v.meters + v.seconds*secondVolume
	volPts := math.Min(raw/volumeDivisor, maxVolumeBonus)
	components[KeyVolume] = volPts
	if volPts > 0 {
		total += volPts
		explanation = append(explanation, fmt.Sprintf("Volume bonus: +%.1f", volPts))
	}

	ratioPts := 0.0
	if ratio, ok := ParseWorkRest(w.WorkRestRatio); ok {
		switch {
		case ratio <= 1:
			ratioPts = denseRatioBonus
			explanation = append(explanation, fmt.Sprintf("Work/rest %s keeps rest short: +%.0f", strings.TrimSpace(w.WorkRestRatio), ratioPts))
		case ratio >= 2:
			ratioPts = restRatioMalus
			explanation = append(explanation, fmt.Sprintf("Work/rest %s is work-heavy with little race-like rest: %.0f", strings.TrimSpace(w.WorkRestRatio), ratioPts))
		}
	}
	components[KeyWorkRest] = ratioPts
	total += ratioPts

	intPts := intensityPoints(w.Intensity)
	components[KeyIntensity] = intPts
	if intPts > 0 {
		total += intPts
		explanation = append(explanation, fmt.Sprintf("%s intensity: +%.0f", titleWord(w.Intensity), intPts))
	}

	if explanation == nil {
		explanation = []string{}
	}
	return Result{
		TransferScore: int(math.Round(math.Max(0, math.Min(100, total)))),
		Components:    components,
		Explanation:   explanation,
	}
}

// collect sums volume over blocks, each counted once per round. Top-level
// movements are only read when the workout has no blocks, since persisted
// records repeat block movements there.
func collect(w WorkoutLike) volume {
	v := volume{present: make(map[string]bool)}

	add := func(m MovementLike, times float64) {
		name := normalize(m.Name)
		dist := m.DistanceMeters.Float() * times
		if matchesAny(name, runningPhrases) {
			v.runMeters += dist
		}
		for _, s := range stations {
			if matchesAny(name, s.phrases) && !matchesAny(name, s.excludes) {
				v.present[s.key] = true
			}
		}
		v.reps += m.Reps.Float() * times
		v.meters += dist
		v.seconds += m.DurationSeconds.Float() * times
	}

	if len(w.Blocks) == 0 {
		for _, m := range w.Movements {
			add(m, 1)
		}
		return v
	}
	for _, b := range w.Blocks {
		times := math.Floor(b.Rounds.Float())
		if times < 1 {
			times = 1
		}
		for _, m := range b.Movements {
			add(m, times)
		}
	}
	return v
}

var ratioRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*[:/]\s*(\d+(?:\.\d+)?)\s*$`)

// ParseWorkRest parses a "work:rest" or "work/rest" string into work divided
// by rest. It reports false for malformed strings and zero rest.
func ParseWorkRest(s string) (float64, bool) {
	m := ratioRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	work, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	rest, err := strconv.ParseFloat(m[2], 64)
	if err != nil || rest == 0 {
		return 0, false
	}
	return work / rest, true
}

func intensityPoints(label string) float64 {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high", "hard", "very high", "max":
		return highIntensity
	case "medium", "moderate":
		return mediumIntensity
	default:
		return 0
	}
}

func titleWord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalize lower-cases a name and pads its words with single spaces so
// phrases can be matched on word boundaries.
func normalize(name string) string {
	s := nonAlnumRe.ReplaceAllString(strings.ToLower(name), " ")
	return " " + strings.TrimSpace(s) + " "
}

func matchesAny(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(normalized, " "+p+" ") {
			return true
		}
	}
	return false
}
