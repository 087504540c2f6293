package repo

import (
	"context"
	"database/sql"

	"opsline/internal/domain"
)

// EventQuery narrows an event listing. Zero values do not filter.
type EventQuery struct {
	EntityID   string
	Type       string
	TargetKind string
	TargetID   string
	Before     int64
	Limit      int
}

const eventColumns = `id,ts,type,entity_id,target_kind,target_id,actor_id,payload_json`

// LatestEvents returns events newest first.
func (r Repo) LatestEvents(ctx context.Context, q EventQuery) ([]domain.Event, error) {
	var clauses []string
	var args []any
	if scoped(q.EntityID) {
		clauses = append(clauses, "entity_id=?")
		args = append(args, q.EntityID)
	}
	if q.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, q.Type)
	}
	if q.TargetKind != "" {
		clauses = append(clauses, "target_kind=?")
		args = append(args, q.TargetKind)
	}
	if q.TargetID != "" {
		clauses = append(clauses, "target_id=?")
		args = append(args, q.TargetID)
	}
	if q.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, q.Before)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events`+where(clauses)+` ORDER BY id DESC LIMIT ?`, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"id>?"}
	args := []any{cursor}
	if scoped(entityID) {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	args = append(args, limit)
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events`+where(clauses)+` ORDER BY id ASC LIMIT ?`, args...)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID, targetID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &entityID, &e.TargetKind, &targetID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		e.EntityID = entityID.String
		e.TargetID = targetID.String
		res = append(res, e)
	}
	return res, rows.Err()
}
