package hyrox

import (
	"encoding/json"

	"github.com/claude/wodpulse/internal/impact"
	"github.com/claude/wodpulse/internal/models"
)

// WorkoutLike is the loose workout view the scorer reads. It matches both
// the authoring layer's shape and persisted workout records.
type WorkoutLike struct {
	Title         string         `json:"title"`
	Intensity     string         `json:"intensity,omitempty"`
	WorkRestRatio string         `json:"work_rest_ratio,omitempty"`
	Blocks        []BlockLike    `json:"blocks,omitempty"`
	Movements     []MovementLike `json:"movements,omitempty"`
}

// BlockLike is a block reduced to its movements and repetition count.
type BlockLike struct {
	Title     string         `json:"title,omitempty"`
	Rounds    models.Number  `json:"rounds,omitempty"`
	Movements []MovementLike `json:"movements"`
}

// MovementLike carries the volume fields of one movement.
type MovementLike struct {
	Name            string        `json:"name"`
	Reps            models.Number `json:"reps,omitempty"`
	DistanceMeters  models.Number `json:"distance_meters,omitempty"`
	DurationSeconds models.Number `json:"duration_seconds,omitempty"`
	Calories        models.Number `json:"calories,omitempty"`
}

// UnmarshalJSON accepts the alternate field names used by older records:
// movement/movement_name for name, distance/meters, duration/seconds and cals.
func (m *MovementLike) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name            string        `json:"name"`
		Movement        string        `json:"movement"`
		MovementName    string        `json:"movement_name"`
		Reps            models.Number `json:"reps"`
		DistanceMeters  models.Number `json:"distance_meters"`
		Distance        models.Number `json:"distance"`
		Meters          models.Number `json:"meters"`
		DurationSeconds models.Number `json:"duration_seconds"`
		Duration        models.Number `json:"duration"`
		Seconds         models.Number `json:"seconds"`
		Calories        models.Number `json:"calories"`
		Cals            models.Number `json:"cals"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*m = MovementLike{
		Name:            firstString(aux.Name, aux.Movement, aux.MovementName),
		Reps:            aux.Reps,
		DistanceMeters:  firstNumber(aux.DistanceMeters, aux.Distance, aux.Meters),
		DurationSeconds: firstNumber(aux.DurationSeconds, aux.Duration, aux.Seconds),
		Calories:        firstNumber(aux.Calories, aux.Cals),
	}
	return nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(vals ...models.Number) models.Number {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// FromWorkout builds the loose view of a structured workout. Rounds and
// intervals blocks keep their round count; standard blocks use the
// repeats inferred from their title and notes.
func FromWorkout(w models.Workout) WorkoutLike {
	out := WorkoutLike{
		Title:         w.Title,
		Intensity:     w.Intensity,
		WorkRestRatio: w.WorkRestRatio,
		Blocks:        make([]BlockLike, 0, len(w.Blocks)),
	}
	for _, b := range w.Blocks {
		if b == nil {
			continue
		}
		h := b.Header()
		bl := BlockLike{Title: h.Title, Movements: make([]MovementLike, 0, len(h.Movements))}

		switch blk := b.(type) {
		case models.StandardBlock:
			bl.Rounds = models.Number(impact.InferRepeats(blk.Title, blk.Notes))
		case models.RoundsBlock:
			bl.Rounds = blk.Rounds
		case models.IntervalsBlock:
			bl.Rounds = blk.Rounds
		}

		for _, m := range h.Movements {
			if m.IsRest() {
				continue
			}
			bl.Movements = append(bl.Movements, MovementLike{
				Name:            m.Name,
				Reps:            m.Reps,
				DistanceMeters:  m.DistanceMeters,
				DurationSeconds: m.DurationSeconds,
				Calories:        m.Calories,
			})
		}
		out.Blocks = append(out.Blocks, bl)
	}
	return out
}
