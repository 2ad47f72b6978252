package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/claude/wodpulse/internal/capacity"
	"github.com/claude/wodpulse/internal/engine"
	"github.com/claude/wodpulse/internal/impact"
	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/storage"
	"github.com/claude/wodpulse/internal/xp"
	"github.com/google/uuid"
)

const testAPIKey = "test-key"

const rowWOD = `{
  "title": "Engine",
  "intensity": "high",
  "blocks": [{"type": "standard", "title": "EMOM 5", "movements": [{"name": "Row", "distance_meters": 250}]}]
}`

// memStore is an in-memory Store.
type memStore struct {
	rows    []models.SnapshotRow
	failing bool
}

func (m *memStore) InsertSnapshot(_ context.Context, row models.SnapshotRow) (models.SnapshotRow, error) {
	if m.failing {
		return models.SnapshotRow{}, errors.New("insert failed")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Date(2026, 3, 1, 0, 0, len(m.rows), 0, time.UTC)
	m.rows = append(m.rows, row)
	return row, nil
}

func (m *memStore) GetSnapshot(_ context.Context, id uuid.UUID, userID int) (*models.SnapshotRow, error) {
	for _, r := range m.rows {
		if r.ID == id && r.UserID == userID {
			return &r, nil
		}
	}
	return nil, storage.ErrSnapshotNotFound
}

func (m *memStore) ListSnapshots(_ context.Context, userID, limit int) ([]models.SnapshotRow, error) {
	out := []models.SnapshotRow{}
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := storage.ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetOrCreateUser(context.Context, string, string) (int, error) {
	return 1, nil
}

func newTestServer(store Store) *Server {
	eng := engine.New(nil, capacity.DefaultModel(), 1)
	return New(eng, store, testAPIKey, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode error: %v (body %q)", err, rec.Body.String())
	}
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	rec := do(t, newTestServer(nil), http.MethodGet, "/api/v1/me", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info UserInfo
	decodeJSON(t, rec, &info)
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}

// TestHandleMeTailscaleUser verifies /api/v1/me reports the tailnet peer
// once SetTailscale is called.
func TestHandleMeTailscaleUser(t *testing.T) {
	s := newTestServer(nil)
	s.SetTailscale(fakeWhoIs{login: "alice@example.com", name: "Alice"})

	var info UserInfo
	decodeJSON(t, do(t, s, http.MethodGet, "/api/v1/me", ""), &info)
	if info.Login != "alice@example.com" {
		t.Errorf("login = %q, want %q", info.Login, "alice@example.com")
	}
	if info.DisplayName != "Alice" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Alice")
	}
}

// TestHandleImpact verifies blocks are decoded and aggregated.
func TestHandleImpact(t *testing.T) {
	body := `{"athlete_level": "30", "blocks": [
		{"type": "rounds", "rounds": 3, "movements": [{"name": "Pull-up", "reps": 10}]},
		{"type": "standard", "movements": [{"name": "Rest", "duration_seconds": 60}]}
	]}`
	rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/impact", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res impact.Result
	decodeJSON(t, rec, &res)
	if res.MuscleCounts["pull"] != 3 {
		t.Errorf("pull count = %d, want 3", res.MuscleCounts["pull"])
	}
	if len(res.Blocks) != 2 || len(res.Blocks[0].Movements) != 3 {
		t.Errorf("breakdown = %+v", res.Blocks)
	}
	if res.FatigueTotal <= 0 {
		t.Errorf("fatigue_total = %v", res.FatigueTotal)
	}
}

// TestHandleImpactExtremeValues verifies overflowing multipliers still
// answer with a complete, clamped result.
func TestHandleImpactExtremeValues(t *testing.T) {
	body := `{"blocks": [{"type": "standard", "movements": [
		{"name": "Row", "distance_meters": 500, "execution_multiplier": 1e308},
		{"name": "Row", "distance_meters": 500, "execution_multiplier": 1e308}
	]}]}`
	rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/impact", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty body")
	}

	var res impact.Result
	decodeJSON(t, rec, &res)
	if res.FatigueTotal != impact.MaxFatigue {
		t.Errorf("fatigue_total = %v, want %v", res.FatigueTotal, impact.MaxFatigue)
	}
}

// TestHandleBadInput verifies malformed bodies and query values answer 400.
func TestHandleBadInput(t *testing.T) {
	s := newTestServer(nil)
	tests := []struct {
		name, method, path, body string
	}{
		{"impact bad json", http.MethodPost, "/api/v1/impact", `{"blocks": [`},
		{"evaluate bad level", http.MethodPost, "/api/v1/evaluate?level=high", rowWOD},
		{"hyrox not an object", http.MethodPost, "/api/v1/hyrox", `[1,2]`},
		{"xp bad fatigue", http.MethodGet, "/api/v1/xp?fatigue=lots", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// TestHandleEvaluate verifies the full evaluation is returned.
func TestHandleEvaluate(t *testing.T) {
	rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/evaluate?level=20", rowWOD)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var ev engine.Evaluation
	decodeJSON(t, rec, &ev)
	if ev.AthleteLevel != 20 {
		t.Errorf("athlete_level = %v, want 20", ev.AthleteLevel)
	}
	if ev.Hyrox.Components["row"] != 10 {
		t.Errorf("row component = %v, want 10", ev.Hyrox.Components["row"])
	}
	if ev.Payload.XPEstimate == 0 {
		t.Error("expected an XP estimate")
	}
}

// TestHandleHyrox verifies loose movement aliases reach the scorer.
func TestHandleHyrox(t *testing.T) {
	body := `{"movements": [{"movement": "Run", "distance": 8000}]}`
	rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/hyrox", body)
	var res struct {
		TransferScore int `json:"transfer_score"`
	}
	decodeJSON(t, rec, &res)
	if res.TransferScore < 20 {
		t.Errorf("transfer_score = %d, want at least the running cap", res.TransferScore)
	}
}

// TestHandleNormalizeCapacities verifies records are normalized and ordered.
func TestHandleNormalizeCapacities(t *testing.T) {
	body := `{"level": 1, "mode": "level", "capacities": [
		{"capacity": "strength", "value": 40},
		{"name": "endurance", "score": "20"},
		{"code": "grip", "value": 5}
	]}`
	rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/capacities/normalize", body)
	var items []capacity.DisplayItem
	decodeJSON(t, rec, &items)
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Key != "endurance" || items[1].Key != "strength" || items[2].Key != "grip" {
		t.Errorf("order = %s, %s, %s", items[0].Key, items[1].Key, items[2].Key)
	}
	if items[1].Percent != 100 {
		t.Errorf("strength percent = %d, want 100", items[1].Percent)
	}
	if items[2].Known {
		t.Error("grip should not be a known capacity")
	}
}

// TestHandleXP verifies the query parameters feed the XP estimator.
func TestHandleXP(t *testing.T) {
	rec := do(t, newTestServer(nil), http.MethodGet, "/api/v1/xp?fatigue=10&level=15", "")
	var est xp.Estimate
	decodeJSON(t, rec, &est)
	if est.XP != 600 {
		t.Errorf("xp = %d, want 600", est.XP)
	}
}

// TestHandleXPDefaultLevel verifies a missing level falls back to the
// configured default level.
func TestHandleXPDefaultLevel(t *testing.T) {
	eng := engine.New(nil, capacity.DefaultModel(), 15)
	s := New(eng, nil, testAPIKey, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var est xp.Estimate
	decodeJSON(t, do(t, s, http.MethodGet, "/api/v1/xp?fatigue=10", ""), &est)
	if est.XP != 600 {
		t.Errorf("xp = %d, want 600", est.XP)
	}
}

// TestHandleMovements verifies catalog listing and single-rule lookups.
func TestHandleMovements(t *testing.T) {
	s := newTestServer(nil)

	var names []string
	decodeJSON(t, do(t, s, http.MethodGet, "/api/v1/movements", ""), &names)
	if len(names) == 0 {
		t.Fatal("empty catalog")
	}

	rec := do(t, s, http.MethodGet, "/api/v1/movements/row", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("row status = %d", rec.Code)
	}
	var mr movementResponse
	decodeJSON(t, rec, &mr)
	if !mr.Known || !mr.SupportsTime || mr.Rule.BaseUnit != "meters" {
		t.Errorf("row = %+v", mr)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/movements/Zottman%20Curl", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown movement status = %d, want 404", rec.Code)
	}

	var st struct {
		SupportsTime bool `json:"supports_time"`
	}
	decodeJSON(t, do(t, s, http.MethodGet, "/api/v1/movements/Thruster/supports-time", ""), &st)
	if st.SupportsTime {
		t.Error("thruster should not support time")
	}
}

// TestSnapshotsWithoutStore verifies snapshot endpoints answer 503 when no
// database is configured.
func TestSnapshotsWithoutStore(t *testing.T) {
	s := newTestServer(nil)
	if rec := do(t, s, http.MethodGet, "/api/v1/workouts", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("list status = %d, want 503", rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", rowWOD, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("create status = %d, want 503", rec.Code)
	}
}

// TestSnapshotLifecycle verifies create, list and fetch round trip through the store.
func TestSnapshotLifecycle(t *testing.T) {
	store := &memStore{}
	s := newTestServer(store)

	if rec := do(t, s, http.MethodPost, "/api/v1/workouts", rowWOD); rec.Code != http.StatusUnauthorized {
		t.Fatalf("create without key = %d, want 401", rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/workouts", rowWOD, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	decodeJSON(t, rec, &created)
	if created.ID == uuid.Nil {
		t.Fatal("expected snapshot id")
	}

	var list []models.SnapshotRow
	decodeJSON(t, do(t, s, http.MethodGet, "/api/v1/workouts?limit=5", ""), &list)
	if len(list) != 1 || list[0].Title != "Engine" {
		t.Fatalf("list = %+v", list)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got models.SnapshotRow
	decodeJSON(t, rec, &got)
	if got.XP != store.rows[0].XP || !bytes.Contains(got.Payload, []byte(`"impact"`)) {
		t.Errorf("snapshot = %+v", got)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/workouts/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing snapshot = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/workouts/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/workouts?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", rec.Code)
	}
}

// TestCreateSnapshotStoreError verifies storage failures answer 500.
func TestCreateSnapshotStoreError(t *testing.T) {
	s := newTestServer(&memStore{failing: true})
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", rowWOD, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// TestSetMCP verifies the MCP handler is mounted behind identity middleware.
func TestSetMCP(t *testing.T) {
	s := newTestServer(nil)
	var gotID int
	s.SetMCP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = UserIDFromRequest(r)
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := do(t, s, http.MethodPost, "/mcp", `{}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if gotID != 1 {
		t.Errorf("userID = %d, want 1", gotID)
	}
}
