package server

import (
	"encoding/json"

	"opsline/internal/domain"
)

type CreateEntityRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type CreateProjectRequest struct {
	ID          string `json:"id,omitempty"`
	EntityID    string `json:"entity_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Status      string  `json:"status,omitempty" enum:"active,paused,archived"`
	Description *string `json:"description,omitempty"`
}

type CreateAssigneeRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type CreateTaskRequest struct {
	ID             string   `json:"id,omitempty"`
	ProjectID      string   `json:"project_id"`
	Title          string   `json:"title"`
	Status         string   `json:"status,omitempty" doc:"Status label; Spanish and English labels are accepted"`
	Priority       string   `json:"priority,omitempty"`
	DueDate        string   `json:"due_date,omitempty" doc:"YYYY-MM-DD or RFC3339"`
	AssigneeID     string   `json:"assignee_id,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	ActualHours    *float64 `json:"actual_hours,omitempty"`
	Progress       *float64 `json:"progress,omitempty"`
}

type UpdateTaskRequest struct {
	Status         *string  `json:"status,omitempty"`
	Priority       *string  `json:"priority,omitempty"`
	DueDate        *string  `json:"due_date,omitempty" doc:"Empty string clears the due date"`
	AssigneeID     *string  `json:"assignee_id,omitempty" doc:"Empty string unassigns"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	ActualHours    *float64 `json:"actual_hours,omitempty"`
	Progress       *float64 `json:"progress,omitempty"`
}

type CreateProcessRequest struct {
	ID       string `json:"id,omitempty"`
	EntityID string `json:"entity_id"`
	Title    string `json:"title"`
	Kind     string `json:"kind,omitempty" enum:"hiring,procurement"`
}

type TogglePhaseRequest struct {
	Completed bool `json:"completed"`
}

type RoleChangeRequest struct {
	ActorID  string `json:"actor_id"`
	RoleID   string `json:"role_id"`
	EntityID string `json:"entity_id,omitempty" doc:"Entity id or all"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	EntityID    string   `json:"entity_id,omitempty" doc:"Active entity carried by the token"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID     string              `json:"actor_id"`
	Source      string              `json:"source,omitempty"`
	Roles       []string            `json:"roles"`
	Permissions []string            `json:"permissions"`
	Grants      map[string][]string `json:"grants"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id,omitempty"`
	TargetKind string         `json:"target_kind"`
	TargetID   string         `json:"target_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityID:   e.EntityID,
		TargetKind: e.TargetKind,
		TargetID:   e.TargetID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
