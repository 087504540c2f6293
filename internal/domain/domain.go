package domain

import (
	"regexp"
	"time"
)

// ScopeAll selects every project, entity or assignee in a report filter.
const ScopeAll = "all"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// ValidID reports whether id is usable as a record identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

type Entity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string `json:"id"`
	EntityID    string `json:"entity_id"`
	Name        string `json:"name"`
	Status      string `json:"status" enum:"active,paused,archived"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// Assignee is referenced by work items, never owned by them.
type Assignee struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
}

// WorkItem is a task-like unit of work. CompletedAt is set iff Status is Completed.
type WorkItem struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	EntityID       *string    `json:"entity_id,omitempty"`
	Title          string     `json:"title"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	AssigneeID     *string    `json:"assignee_id,omitempty"`
	Assignee       *Assignee  `json:"assignee,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Progress       *float64   `json:"progress,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Process is a multi-phase procurement or hiring workflow.
type Process struct {
	ID        string        `json:"id"`
	EntityID  string        `json:"entity_id"`
	Title     string        `json:"title"`
	Kind      string        `json:"kind" enum:"hiring,procurement"`
	Progress  int           `json:"progress"`
	Status    ProcessStatus `json:"status"`
	CreatedAt string        `json:"created_at" format:"date-time"`
	UpdatedAt string        `json:"updated_at" format:"date-time"`
}

type PhaseDefinition struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Weight   int    `json:"weight"`
	Position int    `json:"position"`
}

type PhaseTracking struct {
	ProcessID   string     `json:"process_id"`
	PhaseCode   string     `json:"phase_code"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityID   string `json:"entity_id,omitempty"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// RoleGrant binds an actor to a role within an entity, or globally when EntityID is "all".
type RoleGrant struct {
	EntityID string `json:"entity_id"`
	ActorID  string `json:"actor_id"`
	RoleID   string `json:"role_id"`
}
