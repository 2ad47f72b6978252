package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/wodpulse/internal/engine"
	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"tailscale.com/client/tailscale/apitype"
)

// Store persists evaluated workouts and resolves tailnet users.
// *storage.DB satisfies it.
type Store interface {
	InsertSnapshot(ctx context.Context, row models.SnapshotRow) (models.SnapshotRow, error)
	GetSnapshot(ctx context.Context, id uuid.UUID, userID int) (*models.SnapshotRow, error)
	ListSnapshots(ctx context.Context, userID, limit int) ([]models.SnapshotRow, error)
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

var _ Store = (*storage.DB)(nil)

// WhoIser identifies the tailnet peer behind a remote address.
// The tsnet local client satisfies it.
type WhoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine *engine.Engine
	store  Store
	whois  WhoIser
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured. A nil store runs the
// engine endpoints only; snapshot endpoints then answer 503.
func New(eng *engine.Engine, store Store, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches request identity from the local dev user to the
// tailnet peer reported by whois.
func (s *Server) SetTailscale(whois WhoIser) {
	s.whois = whois
}

// SetMCP mounts an MCP streamable HTTP handler at /mcp behind the same
// identity middleware as the API.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(s.identify).Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identify)

		// Engine endpoints (pure, no persistence)
		r.Post("/impact", s.handleImpact)
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/hyrox", s.handleHyrox)
		r.Post("/capacities/normalize", s.handleNormalizeCapacities)
		r.Get("/xp", s.handleXP)
		r.Get("/movements", s.handleMovements)
		r.Get("/movements/{name}", s.handleMovement)
		r.Get("/movements/{name}/supports-time", s.handleSupportsTime)

		r.Get("/me", s.handleMe)

		// Snapshot endpoints
		r.Get("/workouts", s.handleListWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)
		r.With(APIKeyAuth(s.apiKey)).Post("/workouts", s.handleCreateWorkout)
	})
}

// identify resolves the caller per request so SetTailscale can be called
// after the routes are built.
func (s *Server) identify(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.store, s.log)(next).ServeHTTP(w, r)
	})
}
