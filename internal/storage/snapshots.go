package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/wodpulse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrSnapshotNotFound is returned when no snapshot matches the id for the user.
var ErrSnapshotNotFound = errors.New("snapshot not found")

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// InsertSnapshot stores an evaluated workout. A zero ID is replaced with a
// fresh UUID; the stored row is returned with its ID and creation time.
func (db *DB) InsertSnapshot(ctx context.Context, row models.SnapshotRow) (models.SnapshotRow, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO workout_impacts (id, user_id, title, athlete_level, fatigue_total, raw_fatigue,
		 xp, hyrox_score, payload)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING created_at`,
		row.ID, row.UserID, row.Title, row.AthleteLevel, row.FatigueTotal, row.RawFatigue,
		row.XP, row.HyroxScore, row.Payload).Scan(&row.CreatedAt)
	if err != nil {
		return models.SnapshotRow{}, fmt.Errorf("inserting snapshot: %w", err)
	}
	return row, nil
}

// GetSnapshot retrieves one snapshot owned by the user.
func (db *DB) GetSnapshot(ctx context.Context, id uuid.UUID, userID int) (*models.SnapshotRow, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, title, athlete_level, fatigue_total, raw_fatigue, xp, hyrox_score,
		 payload, created_at
		 FROM workout_impacts
		 WHERE id = $1 AND user_id = $2`,
		id, userID)

	var s models.SnapshotRow
	err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.AthleteLevel, &s.FatigueTotal, &s.RawFatigue,
		&s.XP, &s.HyroxScore, &s.Payload, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return &s, nil
}

// ListSnapshots returns the user's most recent snapshots, newest first.
// Payloads are left out; fetch a single snapshot for the full evaluation.
func (db *DB) ListSnapshots(ctx context.Context, userID, limit int) ([]models.SnapshotRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, title, athlete_level, fatigue_total, raw_fatigue, xp, hyrox_score,
		 created_at
		 FROM workout_impacts
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	result := []models.SnapshotRow{}
	for rows.Next() {
		var s models.SnapshotRow
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.AthleteLevel, &s.FatigueTotal,
			&s.RawFatigue, &s.XP, &s.HyroxScore, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// ClampLimit bounds a list limit to [1, MaxListLimit]; non-positive means default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
