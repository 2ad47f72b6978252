package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SnapshotRow is a row of the workout_impacts table: one evaluated workout
// with its headline numbers and the full evaluation as JSON.
type SnapshotRow struct {
	ID           uuid.UUID       `json:"id"`
	UserID       int             `json:"user_id"`
	Title        string          `json:"title"`
	AthleteLevel float64         `json:"athlete_level"`
	FatigueTotal float64         `json:"fatigue_total"`
	RawFatigue   float64         `json:"raw_fatigue"`
	XP           int             `json:"xp"`
	HyroxScore   int             `json:"hyrox_score"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}
