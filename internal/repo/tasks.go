package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"opsline/internal/domain"
)

const taskColumns = `t.id,t.project_id,p.entity_id,t.title,t.status,t.priority,t.due_date,t.completed_at,t.assignee_id,a.name,a.email,t.estimated_hours,t.actual_hours,t.progress,t.created_at,t.updated_at`

const taskFrom = ` FROM tasks t
LEFT JOIN projects p ON p.id = t.project_id
LEFT JOIN assignees a ON a.id = t.assignee_id`

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.WorkItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,status,priority,due_date,completed_at,assignee_id,estimated_hours,actual_hours,progress,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, string(t.Status), nullablePriority(t.Priority), nullableDate(t.DueDate), nullableTS(t.CompletedAt),
		nullableStringPtr(t.AssigneeID), nullableFloatPtr(t.EstimatedHours), nullableFloatPtr(t.ActualHours), nullableFloatPtr(t.Progress),
		formatTS(t.CreatedAt), formatTS(t.UpdatedAt))
	return err
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.WorkItem) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET project_id=?, title=?, status=?, priority=?, due_date=?, completed_at=?, assignee_id=?, estimated_hours=?, actual_hours=?, progress=?, updated_at=? WHERE id=?`,
		t.ProjectID, t.Title, string(t.Status), nullablePriority(t.Priority), nullableDate(t.DueDate), nullableTS(t.CompletedAt),
		nullableStringPtr(t.AssigneeID), nullableFloatPtr(t.EstimatedHours), nullableFloatPtr(t.ActualHours), nullableFloatPtr(t.Progress),
		formatTS(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.WorkItem, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+taskFrom+` WHERE t.id=?`, id).Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.WorkItem, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+taskFrom+` WHERE t.id=?`, id).Scan)
}

// FetchWorkItems returns the work items matching the filter. The entity scope
// is resolved through the project join; items whose project or entity link
// cannot be resolved are kept. The date window applies to created_at and is
// inclusive of the whole end day.
func (r Repo) FetchWorkItems(ctx context.Context, f domain.ReportFilter) ([]domain.WorkItem, error) {
	var clauses []string
	var args []any
	if scoped(f.ProjectID) {
		clauses = append(clauses, "t.project_id=?")
		args = append(args, f.ProjectID)
	}
	if scoped(f.EntityID) {
		clauses = append(clauses, "(p.entity_id=? OR p.entity_id IS NULL)")
		args = append(args, f.EntityID)
	}
	if f.StartDate != nil {
		clauses = append(clauses, "t.created_at>=?")
		args = append(args, formatTS(*f.StartDate))
	}
	if f.EndDate != nil {
		clauses = append(clauses, "t.created_at<?")
		args = append(args, formatTS(f.EndDate.AddDate(0, 0, 1)))
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "t.status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if len(f.Priorities) > 0 {
		var named []any
		unspecified := false
		for _, p := range f.Priorities {
			if p == domain.PriorityUnspecified {
				unspecified = true
				continue
			}
			named = append(named, string(p))
		}
		var parts []string
		if len(named) > 0 {
			parts = append(parts, "t.priority IN ("+placeholders(len(named))+")")
			args = append(args, named...)
		}
		if unspecified {
			parts = append(parts, "t.priority IS NULL")
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}
	if scoped(f.AssigneeID) {
		clauses = append(clauses, "t.assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	query := `SELECT ` + taskColumns + taskFrom + where(clauses) + ` ORDER BY t.created_at DESC, t.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkItem
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func scanTask(scan func(dest ...any) error) (domain.WorkItem, error) {
	var t domain.WorkItem
	var status, createdAt, updatedAt string
	var entityID, priority, dueDate, completedAt, assigneeID, assigneeName, assigneeEmail sql.NullString
	var est, act, progress sql.NullFloat64
	err := scan(&t.ID, &t.ProjectID, &entityID, &t.Title, &status, &priority, &dueDate, &completedAt,
		&assigneeID, &assigneeName, &assigneeEmail, &est, &act, &progress, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if t.Status, err = domain.ParseStatus(status); err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if t.Priority, err = domain.ParsePriority(priority.String); err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if entityID.Valid {
		t.EntityID = &entityID.String
	}
	if dueDate.Valid && dueDate.String != "" {
		d, err := parseTS(dueDate.String)
		if err != nil {
			return t, fmt.Errorf("task %s: invalid due_date: %w", t.ID, err)
		}
		t.DueDate = &d
	}
	if completedAt.Valid && completedAt.String != "" {
		c, err := parseTS(completedAt.String)
		if err != nil {
			return t, fmt.Errorf("task %s: invalid completed_at: %w", t.ID, err)
		}
		t.CompletedAt = &c
	}
	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.String
		if assigneeName.Valid {
			t.Assignee = &domain.Assignee{ID: assigneeID.String, Name: assigneeName.String, Email: assigneeEmail.String}
		}
	}
	if est.Valid {
		t.EstimatedHours = &est.Float64
	}
	if act.Valid {
		t.ActualHours = &act.Float64
	}
	if progress.Valid {
		t.Progress = &progress.Float64
	}
	if t.CreatedAt, err = parseTS(createdAt); err != nil {
		return t, fmt.Errorf("task %s: invalid created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTS(updatedAt); err != nil {
		t.UpdatedAt = t.CreatedAt
	}
	return t, nil
}

func nullablePriority(p domain.Priority) any {
	if p == "" || p == domain.PriorityUnspecified {
		return nil
	}
	return string(p)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ParseDate parses a YYYY-MM-DD or RFC3339 value as a UTC time.
func ParseDate(v string) (time.Time, error) {
	return parseTS(v)
}
