package opslinesdk

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

// Client is a minimal Opsline HTTP API client.
type Client struct {
	BaseURL     string
	EntityID    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. entityID is sent as the active
// entity on every request; leave it empty to always pass entity_id explicitly.
func New(baseURL, entityID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		EntityID: entityID,
		Timeout:  10 * time.Second,
	}
}

// ReportRequest mirrors the raw report filter accepted by POST /v0/reports.
type ReportRequest struct {
	ProjectID  string   `json:"project_id,omitempty"`
	EntityID   string   `json:"entity_id,omitempty"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Status     []string `json:"status,omitempty"`
	Priority   []string `json:"priority,omitempty"`
	AssigneeID string   `json:"assignee_id,omitempty"`
}

type TeamMember struct {
	AssigneeID         string  `json:"assignee_id"`
	Name               string  `json:"name"`
	Total              int     `json:"total"`
	Completed          int     `json:"completed"`
	Efficacy           int     `json:"efficacy"`
	Punctuality        int     `json:"punctuality"`
	PredictedDelayRisk float64 `json:"predicted_delay_risk"`
	RiskLevel          string  `json:"risk_level"`
}

type BurndownPoint struct {
	Day       int     `json:"day"`
	Date      string  `json:"date"`
	Ideal     float64 `json:"ideal"`
	Actual    int     `json:"actual"`
	Remaining int     `json:"remaining"`
}

// Report is the report snapshot (partial).
type Report struct {
	Filter          map[string]any  `json:"filter"`
	TotalTasks      int             `json:"total_tasks"`
	CompletedTasks  int             `json:"completed_tasks"`
	PendingTasks    int             `json:"pending_tasks"`
	AvgProgress     float64         `json:"avg_progress"`
	TasksByStatus   map[string]int  `json:"tasks_by_status"`
	TasksByPriority map[string]int  `json:"tasks_by_priority"`
	TeamEfficacy    []TeamMember    `json:"team_efficacy"`
	BurndownData    []BurndownPoint `json:"burndown_data"`
}

type Phase struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Position    int    `json:"position"`
	IsCompleted bool   `json:"is_completed"`
}

// ProcessState is a process checklist with its derived progress and status.
type ProcessState struct {
	Process struct {
		ID       string `json:"id"`
		EntityID string `json:"entity_id"`
		Title    string `json:"title"`
		Kind     string `json:"kind"`
	} `json:"process"`
	Phases   []Phase `json:"phases"`
	Progress int     `json:"progress"`
	Status   string  `json:"status"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	TargetKind string         `json:"target_kind"`
	TargetID   string         `json:"target_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code is the error envelope code when the
// body carried one.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Report requests a snapshot for the given filter.
func (c *Client) Report(ctx context.Context, req ReportRequest) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodPost, "v0/reports", req, &resp)
	return resp, err
}

// ProcessPhases returns the checklist of a process.
func (c *Client) ProcessPhases(ctx context.Context, processID string) (ProcessState, error) {
	var resp ProcessState
	endpoint := fmt.Sprintf("v0/processes/%s/phases", url.PathEscape(processID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TogglePhase marks a phase complete or incomplete and returns the new state.
func (c *Client) TogglePhase(ctx context.Context, processID, phaseCode string, completed bool) (ProcessState, error) {
	var resp ProcessState
	endpoint := fmt.Sprintf("v0/processes/%s/phases/%s", url.PathEscape(processID), url.PathEscape(phaseCode))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"completed": completed}, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v0/events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.EntityID != "" {
		req.Header.Set("X-Entity-Id", c.EntityID)
	}
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
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
