package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/claude/wodpulse/internal/capacity"
	"github.com/claude/wodpulse/internal/hyrox"
	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/rules"
	"github.com/claude/wodpulse/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type impactRequest struct {
	Blocks       models.Blocks `json:"blocks"`
	AthleteLevel models.Number `json:"athlete_level"`
}

type normalizeRequest struct {
	Capacities []capacity.Record `json:"capacities"`
	Level      models.Number     `json:"level"`
	Mode       string            `json:"mode"`
}

type movementResponse struct {
	Rule         rules.MovementRule `json:"rule"`
	Known        bool               `json:"known"`
	SupportsTime bool               `json:"supports_time"`
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	var req impactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.ComputeImpact(req.Blocks, req.AthleteLevel.Float()))
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var workout models.Workout
	if !decodeBody(w, r, &workout) {
		return
	}
	level, ok := queryFloat(w, r, "level")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Evaluate(workout, level))
}

func (s *Server) handleHyrox(w http.ResponseWriter, r *http.Request) {
	var workout hyrox.WorkoutLike
	if !decodeBody(w, r, &workout) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.HyroxTransfer(workout))
}

func (s *Server) handleNormalizeCapacities(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	items := s.engine.NormalizeCapacities(req.Capacities, req.Level.Float(), capacity.ParseMode(req.Mode))
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleXP(w http.ResponseWriter, r *http.Request) {
	fatigue, ok := queryFloat(w, r, "fatigue")
	if !ok {
		return
	}
	level, ok := queryFloat(w, r, "level")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.EstimateXP(fatigue, level))
}

func (s *Server) handleMovements(w http.ResponseWriter, _ *http.Request) {
	catalog := s.engine.Catalog()
	names := make([]string, len(catalog))
	for i, rule := range catalog {
		names[i] = rule.Name
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleMovement(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rule, ok := s.engine.FindMovementRule(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":        "unknown movement: " + name,
			"default_rule": rules.DefaultRule(),
		})
		return
	}
	writeJSON(w, http.StatusOK, movementResponse{
		Rule:         rule,
		Known:        true,
		SupportsTime: s.engine.SupportsTime(name),
	})
}

func (s *Server) handleSupportsTime(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	writeJSON(w, http.StatusOK, map[string]any{
		"name":          name,
		"supports_time": s.engine.SupportsTime(name),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var workout models.Workout
	if !decodeBody(w, r, &workout) {
		return
	}
	level, ok := queryFloat(w, r, "level")
	if !ok {
		return
	}

	ev := s.engine.Evaluate(workout, level)
	row, err := ev.Snapshot(userIDFromContext(r))
	if err != nil {
		s.log.Error("building snapshot", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	saved, err := s.store.InsertSnapshot(r.Context(), row)
	if err != nil {
		s.log.Error("saving snapshot", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         saved.ID,
		"created_at": saved.CreatedAt,
		"evaluation": ev,
	})
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit: " + v})
			return
		}
		limit = n
	}

	rows, err := s.store.ListSnapshots(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid snapshot ID"})
		return
	}

	row, err := s.store.GetSnapshot(r.Context(), id, userIDFromContext(r))
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshot not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot storage is not configured"})
		return false
	}
	return true
}

// decodeBody reads a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body: " + err.Error()})
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// queryFloat parses an optional numeric query parameter; absent means 0.
func queryFloat(w http.ResponseWriter, r *http.Request, name string) (float64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name + ": " + v})
		return 0, false
	}
	return f, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
