// Package client is the HTTP/JSON client for the scout control surface,
// used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/groblegark/scout/internal/calendar"
	"github.com/groblegark/scout/internal/model"
)

// Client talks to a running scout server over its HTTP/JSON API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client targeting the given base URL (e.g.
// "http://localhost:8080"). When apiKey is non-empty, an X-API-Key header is
// set on every request.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// ListEventsRequest selects events to list.
type ListEventsRequest struct {
	Status   []string
	Source   string
	FreeOnly bool
	Search   string
	Sort     string
	Limit    int
	Offset   int
}

// ListEventsResponse is a page of events with the unpaginated total.
type ListEventsResponse struct {
	Events []*model.Event `json:"events"`
	Total  int            `json:"total"`
}

func (c *Client) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error) {
	q := url.Values{}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.Source != "" {
		q.Set("source", req.Source)
	}
	if req.FreeOnly {
		q.Set("free", "true")
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", req.Offset))
	}

	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EventDetail is one event with its registration result and open approval
// request when present.
type EventDetail struct {
	Event        *model.Event              `json:"event"`
	Registration *model.RegistrationResult `json:"registration,omitempty"`
	Approval     *model.ApprovalRequest    `json:"approval,omitempty"`
}

func (c *Client) GetEvent(ctx context.Context, id string) (*EventDetail, error) {
	var detail EventDetail
	if err := c.doJSON(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DecisionResponse reports the outcome of an operator approve/reject.
type DecisionResponse struct {
	Success  bool           `json:"success"`
	EventID  string         `json:"event_id"`
	Decision model.Decision `json:"decision"`
}

func (c *Client) Approve(ctx context.Context, id string) (*DecisionResponse, error) {
	var resp DecisionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(id)+"/approve", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Reject(ctx context.Context, id string) (*DecisionResponse, error) {
	var resp DecisionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(id)+"/reject", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterResponse reports one registration attempt.
type RegisterResponse struct {
	Success      bool                      `json:"success"`
	Registration *model.RegistrationResult `json:"registration"`
}

func (c *Client) Register(ctx context.Context, id string) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(id)+"/register", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CalendarResponse reports the family-calendar conflict for one event, if any.
type CalendarResponse struct {
	EventID  string             `json:"event_id"`
	Conflict *calendar.Conflict `json:"conflict"`
	Clear    bool               `json:"clear"`
}

func (c *Client) CheckCalendar(ctx context.Context, id string) (*CalendarResponse, error) {
	var resp CalendarResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(id)+"/calendar", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BulkResult is the per-event outcome of a bulk action.
type BulkResult struct {
	EventID string `json:"event_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (c *Client) BulkAction(ctx context.Context, action string, eventIDs []string) ([]BulkResult, error) {
	body := map[string]any{"action": action, "event_ids": eventIDs}
	var resp struct {
		Results []BulkResult `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/bulk-action", body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) EmergencyShutdown(ctx context.Context, actor string) error {
	body := map[string]string{"actor": actor}
	return c.doJSON(ctx, http.MethodPost, "/v1/emergency-shutdown", body, nil)
}

// HealthResponse is the service health status.
type HealthResponse struct {
	Status string `json:"status"`
	Halted bool   `json:"halted"`
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response. If result is nil, the response body is discarded.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
