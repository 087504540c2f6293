package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended by the engine and the phase engine.
const (
	EntityCreated        = "entity.created"
	ProjectCreated       = "project.created"
	ProjectUpdated       = "project.updated"
	AssigneeCreated      = "assignee.created"
	TaskCreated          = "task.created"
	TaskUpdated          = "task.updated"
	ProcessCreated       = "process.created"
	PhaseToggled         = "phase.toggled"
	ProcessStatusChanged = "process.status_changed"
	RoleGranted          = "rbac.role_granted"
	RoleRevoked          = "rbac.role_revoked"
	APIKeyCreated        = "rbac.api_key_created"
	APIKeyRevoked        = "rbac.api_key_revoked"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Record describes one event to append.
type Record struct {
	Type       string
	EntityID   string
	TargetKind string
	TargetID   string
	ActorID    string
	Payload    EventPayload
}

// Append writes the event inside the caller's transaction so it commits or
// rolls back with the mutation it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, rec Record) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	payload := rec.Payload
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	actor := rec.ActorID
	if actor == "" {
		actor = "system"
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_id,target_kind,target_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), rec.Type, nullable(rec.EntityID), rec.TargetKind, nullable(rec.TargetID), actor, string(data))
	if err != nil {
		return fmt.Errorf("append event %s: %w", rec.Type, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
