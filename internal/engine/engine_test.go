package engine

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/claude/wodpulse/internal/capacity"
	"github.com/claude/wodpulse/internal/models"
)

const partnerWOD = `{
  "title": "Race Prep",
  "intensity": "high",
  "work_rest_ratio": "1:1",
  "athlete_level": 20,
  "blocks": [
    {"type": "standard", "title": "Warm-up", "movements": [{"name": "Row", "distance_meters": 500}]},
    {"type": "rounds", "rounds": 4, "movements": [
      {"id": "a", "name": "Run", "distance_meters": 1000},
      {"id": "b", "name": "Wall Ball", "reps": 20},
      {"id": "c", "name": "Sled Push", "distance_meters": 50}
    ], "scenarios": [{"label": "A", "tasks": [{"movement_ref": "a"}, {"movement_ref": "b"}]},
                     {"label": "B", "tasks": [{"movement_ref": "a"}, {"movement_ref": "c"}]}]},
    {"type": "intervals", "work_seconds": 60, "rest_seconds": 60, "rounds": 3,
     "movements": [{"name": "Pull-up", "reps": 8}]}
  ]
}`

func decode(t *testing.T, s string) models.Workout {
	t.Helper()
	var w models.Workout
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		t.Fatalf("decode workout: %v", err)
	}
	return w
}

// TestLevelResolution verifies explicit, workout and default levels in that order.
func TestLevelResolution(t *testing.T) {
	e := New(nil, capacity.DefaultModel(), 12)
	if got := e.Level(models.Workout{AthleteLevel: 30}, 40); got != 40 {
		t.Errorf("explicit level = %v, want 40", got)
	}
	if got := e.Level(models.Workout{AthleteLevel: 30}, 0); got != 30 {
		t.Errorf("workout level = %v, want 30", got)
	}
	if got := e.Level(models.Workout{}, 0); got != 12 {
		t.Errorf("default level = %v, want 12", got)
	}
	if got := New(nil, capacity.DefaultModel(), 0).Level(models.Workout{}, 0); got != 1 {
		t.Errorf("fallback level = %v, want 1", got)
	}
}

// TestEvaluateBuildsPayload verifies the pipeline output and submit payload agree.
func TestEvaluateBuildsPayload(t *testing.T) {
	e := New(nil, capacity.DefaultModel(), 1)
	ev := e.Evaluate(decode(t, partnerWOD), 0)

	if ev.AthleteLevel != 20 {
		t.Errorf("athlete level = %v, want 20", ev.AthleteLevel)
	}
	if ev.Impact.FatigueTotal <= 0 || ev.Impact.FatigueTotal > 10 {
		t.Errorf("fatigue_total = %v, want in (0, 10]", ev.Impact.FatigueTotal)
	}
	if ev.Payload.Difficulty < 0 || ev.Payload.Difficulty > 10 {
		t.Errorf("difficulty = %v", ev.Payload.Difficulty)
	}
	if ev.Payload.XPEstimate != ev.XP.XP || ev.XP.XP <= 0 {
		t.Errorf("xp payload = %d, estimate = %d", ev.Payload.XPEstimate, ev.XP.XP)
	}
	if ev.Payload.HyroxScore != ev.Hyrox.TransferScore || ev.Hyrox.TransferScore == 0 {
		t.Errorf("hyrox payload = %d, score = %d", ev.Payload.HyroxScore, ev.Hyrox.TransferScore)
	}
	if ev.Hyrox.Components["sled_push"] != 10 || ev.Hyrox.Components["row"] != 10 {
		t.Errorf("hyrox components = %v", ev.Hyrox.Components)
	}

	for i := 1; i < len(ev.Payload.Capacities); i++ {
		if ev.Payload.Capacities[i].Value > ev.Payload.Capacities[i-1].Value {
			t.Errorf("capacities not sorted by load: %+v", ev.Payload.Capacities)
		}
	}
	if len(ev.Payload.MuscleTags) == 0 {
		t.Fatal("expected muscle tags")
	}
	for _, tag := range ev.Payload.MuscleTags {
		if tag == "generic" {
			t.Error("generic muscle should not be tagged")
		}
	}
	if ev.Payload.MuscleTags[0] != "legs" {
		t.Errorf("top muscle = %q, want legs", ev.Payload.MuscleTags[0])
	}
}

// TestEvaluateDeterministic verifies identical workouts evaluate identically.
func TestEvaluateDeterministic(t *testing.T) {
	e := New(nil, capacity.DefaultModel(), 1)
	a := e.Evaluate(decode(t, partnerWOD), 25)
	b := e.Evaluate(decode(t, partnerWOD), 25)
	if !reflect.DeepEqual(a, b) {
		t.Error("evaluations differ for identical input")
	}
}

// TestFacadeLookups verifies the rule lookups exposed to the authoring layer.
func TestFacadeLookups(t *testing.T) {
	e := New(nil, capacity.DefaultModel(), 1)
	if _, ok := e.FindMovementRule("wall ball"); !ok {
		t.Error("wall ball should be found")
	}
	if _, ok := e.FindMovementRule("Zottman Curl"); ok {
		t.Error("unknown movement should not be found")
	}
	if !e.SupportsTime("Ski Erg") || e.SupportsTime("Thruster") {
		t.Error("unexpected supports-time result")
	}
}

// TestComputeImpactDefaultsLevel verifies a zero level uses the engine default.
func TestComputeImpactDefaultsLevel(t *testing.T) {
	blocks := []models.Block{models.StandardBlock{BlockHeader: models.BlockHeader{
		Movements: []models.MovementExecution{{Name: "Row", DistanceMeters: 500, TargetTimeSeconds: 100}},
	}}}
	e := New(nil, capacity.DefaultModel(), 60)
	if a, b := e.ComputeImpact(blocks, 0), e.ComputeImpact(blocks, 60); !reflect.DeepEqual(a, b) {
		t.Errorf("level 0 = %v, level 60 = %v", a.FatigueTotal, b.FatigueTotal)
	}
}

// TestEstimateXPDefaultsLevel verifies a zero level uses the engine default.
func TestEstimateXPDefaultsLevel(t *testing.T) {
	e := New(nil, capacity.DefaultModel(), 15)
	if got, want := e.EstimateXP(10, 0), e.EstimateXP(10, 15); got != want {
		t.Errorf("level 0 = %+v, level 15 = %+v", got, want)
	}
	if got := e.EstimateXP(10, 0).XP; got != 600 {
		t.Errorf("xp = %d, want 600", got)
	}
}

// TestSnapshot verifies the storable row mirrors the evaluation headline numbers.
func TestSnapshot(t *testing.T) {
	e := New(nil, capacity.DefaultModel(), 1)
	ev := e.Evaluate(decode(t, partnerWOD), 0)

	row, err := ev.Snapshot(7)
	if err != nil {
		t.Fatal(err)
	}
	if row.UserID != 7 || row.Title != "Race Prep" {
		t.Errorf("row = %+v", row)
	}
	if row.FatigueTotal != ev.Impact.FatigueTotal || row.XP != ev.XP.XP || row.HyroxScore != ev.Hyrox.TransferScore {
		t.Errorf("row numbers do not match evaluation: %+v", row)
	}

	var back Evaluation
	if err := json.Unmarshal(row.Payload, &back); err != nil {
		t.Fatalf("payload is not an evaluation: %v", err)
	}
	if back.Payload.XPEstimate != ev.XP.XP {
		t.Errorf("payload xp = %d, want %d", back.Payload.XPEstimate, ev.XP.XP)
	}
}

// TestCatalog verifies the embedded table is listed in name order.
func TestCatalog(t *testing.T) {
	cat := New(nil, capacity.DefaultModel(), 1).Catalog()
	if len(cat) < 20 {
		t.Fatalf("catalog has %d rules, want the embedded table", len(cat))
	}
	for i := 1; i < len(cat); i++ {
		if cat[i].Name < cat[i-1].Name {
			t.Errorf("catalog not sorted at %d: %q after %q", i, cat[i].Name, cat[i-1].Name)
		}
	}
}
