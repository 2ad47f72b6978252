package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/storage"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the WODPulse REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// snapshots live on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// errNotFound marks a 404 so callers can map it to their own sentinel.
type errNotFound struct{ path string }

func (e errNotFound) Error() string { return "httpclient: " + e.path + " not found" }

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound{path: path}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

// ListSnapshots fetches the caller's recent snapshots. The server resolves
// the caller from the tailnet, so userID is not sent.
func (c *HTTPClient) ListSnapshots(ctx context.Context, _ int, limit int) ([]models.SnapshotRow, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v1/workouts", params)
	if err != nil {
		return nil, err
	}

	var rows []models.SnapshotRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("httpclient: decode snapshots: %w", err)
	}
	return rows, nil
}

// GetSnapshot fetches one snapshot. A 404 maps to storage.ErrSnapshotNotFound.
func (c *HTTPClient) GetSnapshot(ctx context.Context, id uuid.UUID, _ int) (*models.SnapshotRow, error) {
	body, err := c.get(ctx, "/api/v1/workouts/"+id.String(), nil)
	if _, ok := err.(errNotFound); ok {
		return nil, storage.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	var row models.SnapshotRow
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, fmt.Errorf("httpclient: decode snapshot: %w", err)
	}
	return &row, nil
}
