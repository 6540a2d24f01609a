package regimensdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Regimen HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// DomainState is one domain's current reading.
type DomainState struct {
	Domain    string             `json:"domain"`
	Score     float64            `json:"score"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	UpdatedAt string             `json:"updated_at,omitempty"`
}

// Snapshot is the full set of domain states.
type Snapshot struct {
	States []DomainState `json:"states"`
}

// Session is a scheduled or completed activity.
type Session struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	StartAt     string  `json:"start_at"`
	DurationMin int     `json:"duration_min,omitempty"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// TimeWindow bounds an action to a range of clock hours.
type TimeWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// ScoredAction is one ranked recommendation.
type ScoredAction struct {
	ID        string      `json:"id"`
	Domain    string      `json:"domain"`
	Title     string      `json:"title"`
	Rationale string      `json:"rationale"`
	Category  string      `json:"category"`
	Urgency   float64     `json:"urgency"`
	Impact    float64     `json:"impact"`
	Window    *TimeWindow `json:"window,omitempty"`
	Priority  float64     `json:"priority"`
	Weight    float64     `json:"weight"`
}

// Result is one evaluation cycle's plan.
type Result struct {
	CycleID     string         `json:"cycle_id"`
	EvaluatedAt string         `json:"evaluated_at"`
	Commander   ScoredAction   `json:"commander_action"`
	Upcoming    []ScoredAction `json:"upcoming_actions"`
	Alerts      []ScoredAction `json:"alerts"`
	FocusDomain string         `json:"focus_domain"`
	Ranked      []ScoredAction `json:"all_ranked"`
	Narrative   string         `json:"narrative,omitempty"`
}

// Event is a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey is a created key; Key holds the plaintext, shown only once.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Snapshot returns the current domain states.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodGet, "v0/state", nil, &resp)
	return resp, err
}

// SetState upserts one domain's state.
func (c *Client) SetState(ctx context.Context, domain string, score float64, metrics map[string]float64) (DomainState, error) {
	body := map[string]any{"score": score}
	if len(metrics) > 0 {
		body["metrics"] = metrics
	}
	var resp DomainState
	endpoint := fmt.Sprintf("v0/state/%s", url.PathEscape(domain))
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

// CreateSession schedules a session. startAt must be RFC3339.
func (c *Client) CreateSession(ctx context.Context, sessType, startAt string, durationMin int) (Session, error) {
	body := map[string]any{
		"type":     sessType,
		"start_at": startAt,
	}
	if durationMin > 0 {
		body["duration_min"] = durationMin
	}
	var resp Session
	err := c.do(ctx, http.MethodPost, "v0/sessions", body, &resp)
	return resp, err
}

// ListSessions returns sessions, optionally filtered by status.
func (c *Client) ListSessions(ctx context.Context, status string, limit int) ([]Session, error) {
	endpoint := "v0/sessions"
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Session
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CompleteSession marks a planned session completed.
func (c *Client) CompleteSession(ctx context.Context, id string) (Session, error) {
	var resp Session
	endpoint := fmt.Sprintf("v0/sessions/%s/complete", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CancelSession cancels a planned session.
func (c *Client) CancelSession(ctx context.Context, id string) (Session, error) {
	var resp Session
	endpoint := fmt.Sprintf("v0/sessions/%s/cancel", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Evaluate runs one council cycle and returns the plan.
func (c *Client) Evaluate(ctx context.Context, annotate bool) (Result, error) {
	endpoint := "v0/evaluate"
	if annotate {
		endpoint += "?annotate=true"
	}
	var resp Result
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// LatestResult returns the most recent evaluation.
func (c *Client) LatestResult(ctx context.Context) (Result, error) {
	var resp Result
	err := c.do(ctx, http.MethodGet, "v0/evaluations/latest", nil, &resp)
	return resp, err
}

// ListResults returns past evaluations, newest first.
func (c *Client) ListResults(ctx context.Context, limit int) ([]Result, error) {
	endpoint := "v0/evaluations"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Result
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateAPIKey mints a key for an actor.
func (c *Client) CreateAPIKey(ctx context.Context, actorID, name string) (APIKey, error) {
	body := map[string]any{"actor_id": actorID}
	if name != "" {
		body["name"] = name
	}
	var resp APIKey
	err := c.do(ctx, http.MethodPost, "v0/api-keys", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
