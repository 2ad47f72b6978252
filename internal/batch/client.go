package batch

import (
	"bytes"
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
	"github.com/google/uuid"
)

// Client submits workouts to a wodpulse server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the wodpulse server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// Submit POSTs a workout to the server, which evaluates and stores it, and
// returns the snapshot ID. Server errors and transport failures are retried
// up to 3 times with exponential backoff; client errors are not.
func (c *Client) Submit(ctx context.Context, w models.Workout, level float64) (uuid.UUID, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling workout: %w", err)
	}

	u := c.serverURL + "/api/v1/workouts"
	if level > 0 {
		u += "?" + url.Values{"level": {strconv.FormatFloat(level, 'f', -1, 64)}}.Encode()
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return uuid.Nil, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		id, retry, err := c.post(ctx, u, data)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return uuid.Nil, fmt.Errorf("submitting %q: %w", w.Title, lastErr)
}

func (c *Client) post(ctx context.Context, u string, data []byte) (uuid.UUID, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, true, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		retry := resp.StatusCode >= http.StatusInternalServerError
		return uuid.Nil, retry, fmt.Errorf("submit failed (status %d): %s", resp.StatusCode, body)
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return uuid.Nil, false, fmt.Errorf("decoding submit response: %w", err)
	}
	return created.ID, false, nil
}
