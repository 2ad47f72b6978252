package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/wodpulse/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered. The
// snapshot tools are only registered when ds is non-nil.
func New(eng *engine.Engine, ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("WODPulse", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("WODPulse workout impact engine. Evaluate authored workouts for fatigue, capacity and muscle load, "+
			"score HYROX transfer, estimate XP and normalize capacity scores. Saved snapshots are scoped to the authenticated user."),
	)

	h := &handlers{eng: eng, ds: ds, log: log}

	// Engine tools
	s.AddTools(
		server.ServerTool{Tool: toolComputeImpact, Handler: h.computeImpact},
		server.ServerTool{Tool: toolEvaluateWorkout, Handler: h.evaluateWorkout},
		server.ServerTool{Tool: toolHyroxTransfer, Handler: h.hyroxTransfer},
		server.ServerTool{Tool: toolNormalizeCapacities, Handler: h.normalizeCapacities},
		server.ServerTool{Tool: toolEstimateXP, Handler: h.estimateXP},
		server.ServerTool{Tool: toolGetMovementRule, Handler: h.getMovementRule},
	)

	if ds != nil {
		s.AddTools(
			server.ServerTool{Tool: toolListWorkoutSnapshots, Handler: h.listWorkoutSnapshots},
			server.ServerTool{Tool: toolGetWorkoutSnapshot, Handler: h.getWorkoutSnapshot},
		)
	}

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resMovementCatalog, Handler: h.movementCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	eng *engine.Engine
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resMovementCatalog = mcp.NewResource(
	"wodpulse://movement_catalog",
	"Movement Catalog",
	mcp.WithResourceDescription("Every movement rule the engine knows: base unit, reference quantity, exponent, pacing and muscle group"),
	mcp.WithMIMEType("application/json"),
)
