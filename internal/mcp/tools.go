package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/wodpulse/internal/capacity"
	"github.com/claude/wodpulse/internal/hyrox"
	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/rules"
	"github.com/claude/wodpulse/internal/storage"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// decodeArg re-encodes one tool argument and decodes it into v, so objects
// get the same lenient decoding as HTTP bodies. Clients that pass the
// object as a JSON string are accepted too.
func decodeArg(req mcp.CallToolRequest, name string, v any) error {
	raw, ok := req.GetArguments()[name]
	if !ok || raw == nil {
		return fmt.Errorf("%s parameter is required", name)
	}
	var data []byte
	if s, ok := raw.(string); ok {
		data = []byte(s)
	} else {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// --- Tool definitions ---

var toolComputeImpact = mcp.NewTool("compute_impact",
	mcp.WithDescription("Compute the fatigue, capacity load and muscle load of a list of workout blocks. Returns fatigue_total (0-10), per-capacity loads, per-muscle loads and counts, overload warnings and a per-block breakdown."),
	mcp.WithArray("blocks", mcp.Required(), mcp.Items(map[string]any{"type": "object"}),
		mcp.Description("Blocks with a type of 'standard', 'rounds' or 'intervals' and a movements list (name, reps, distance_meters, calories, duration_seconds, target_time_seconds)")),
	mcp.WithNumber("athlete_level", mcp.Description("Athlete level used for pacing expectations. Defaults to the server default.")),
)

var toolEvaluateWorkout = mcp.NewTool("evaluate_workout",
	mcp.WithDescription("Run the full pipeline on an authored workout: impact, HYROX transfer, XP estimate and the payload stored with a saved workout."),
	mcp.WithObject("workout", mcp.Required(), mcp.Description("Workout with title, intensity, work_rest_ratio, athlete_level and blocks")),
	mcp.WithNumber("athlete_level", mcp.Description("Overrides the workout's own athlete_level")),
)

var toolHyroxTransfer = mcp.NewTool("hyrox_transfer",
	mcp.WithDescription("Score how well a workout transfers to a HYROX race (0-100) with per-component points and an explanation."),
	mcp.WithObject("workout", mcp.Required(), mcp.Description("Workout with optional title, intensity, work_rest_ratio, blocks (title, rounds, movements) or top-level movements")),
)

var toolNormalizeCapacities = mcp.NewTool("normalize_capacities",
	mcp.WithDescription("Normalize raw capacity scores to 0-100 percentages of the expectation for an athlete level."),
	mcp.WithArray("capacities", mcp.Required(), mcp.Items(map[string]any{"type": "object"}),
		mcp.Description("Records with a key (capacity, capacity_code, name or code) and a value (value or score)")),
	mcp.WithNumber("level", mcp.Description("Athlete level. Defaults to 1.")),
	mcp.WithString("mode", mcp.Description("Expectation mode. Defaults to 'level'."), mcp.Enum("level", "next_level", "global")),
)

var toolEstimateXP = mcp.NewTool("estimate_xp",
	mcp.WithDescription("Estimate the experience points of a workout from its fatigue (0-10) and the athlete level."),
	mcp.WithNumber("fatigue", mcp.Required(), mcp.Description("Fatigue on the 0-10 scale")),
	mcp.WithNumber("level", mcp.Description("Athlete level. Defaults to 0.")),
)

var toolGetMovementRule = mcp.NewTool("get_movement_rule",
	mcp.WithDescription("Look up the computation rule for a movement. Unknown movements report the default rule the engine falls back to."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Movement name (case-insensitive, e.g. 'Row', 'wall ball')")),
)

var toolListWorkoutSnapshots = mcp.NewTool("list_workout_snapshots",
	mcp.WithDescription("List recently saved workout evaluations with their fatigue, XP and HYROX score, newest first."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of snapshots. Defaults to 20.")),
)

var toolGetWorkoutSnapshot = mcp.NewTool("get_workout_snapshot",
	mcp.WithDescription("Fetch one saved workout evaluation including its full payload."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot UUID")),
)

// --- Tool handlers ---

func (h *handlers) computeImpact(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var blocks models.Blocks
	if err := decodeArg(req, "blocks", &blocks); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(h.eng.ComputeImpact(blocks, req.GetFloat("athlete_level", 0)))
}

func (h *handlers) evaluateWorkout(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var w models.Workout
	if err := decodeArg(req, "workout", &w); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(h.eng.Evaluate(w, req.GetFloat("athlete_level", 0)))
}

func (h *handlers) hyroxTransfer(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var w hyrox.WorkoutLike
	if err := decodeArg(req, "workout", &w); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(h.eng.HyroxTransfer(w))
}

func (h *handlers) normalizeCapacities(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var records []capacity.Record
	if err := decodeArg(req, "capacities", &records); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode := capacity.ParseMode(req.GetString("mode", string(capacity.ModeLevel)))
	return jsonResult(h.eng.NormalizeCapacities(records, req.GetFloat("level", 1), mode))
}

func (h *handlers) estimateXP(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fatigue, err := req.RequireFloat("fatigue")
	if err != nil {
		return mcp.NewToolResultError("fatigue parameter is required"), nil
	}
	return jsonResult(h.eng.EstimateXP(fatigue, req.GetFloat("level", 0)))
}

func (h *handlers) getMovementRule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name parameter is required"), nil
	}
	rule, known := h.eng.FindMovementRule(name)
	if !known {
		rule = rules.DefaultRule()
	}
	return jsonResult(map[string]any{
		"name":          name,
		"known":         known,
		"supports_time": h.eng.SupportsTime(name),
		"rule":          rule,
	})
}

func (h *handlers) listWorkoutSnapshots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	rows, err := h.ds.ListSnapshots(ctx, uid, req.GetInt("limit", storage.DefaultListLimit))
	if err != nil {
		h.log.Error("mcp list_workout_snapshots", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(rows)
}

func (h *handlers) getWorkoutSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid snapshot id: " + idStr), nil
	}

	row, err := h.ds.GetSnapshot(ctx, id, UserIDFromContext(ctx))
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		return mcp.NewToolResultError("snapshot not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_workout_snapshot", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(row)
}
