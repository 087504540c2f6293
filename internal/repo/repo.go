package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"opsline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const dateLayout = "2006-01-02"

// WithinTx runs fn in a transaction, committing only when fn succeeds.
func (r Repo) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) InsertEntityTx(ctx context.Context, tx *sql.Tx, e domain.Entity) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO entities(id,name,created_at) VALUES (?,?,?)`, e.ID, e.Name, e.CreatedAt)
	return err
}

func (r Repo) GetEntity(ctx context.Context, id string) (domain.Entity, error) {
	var e domain.Entity
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM entities WHERE id=?`, id).Scan(&e.ID, &e.Name, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM entities ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var entityID, desc sql.NullString
	if err := scan(&p.ID, &entityID, &p.Name, &p.Status, &desc, &p.CreatedAt); err != nil {
		return p, err
	}
	p.EntityID = entityID.String
	p.Description = desc.String
	return p, nil
}

const projectColumns = `id,entity_id,name,status,description,created_at`

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,entity_id,name,status,description,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, nullable(p.EntityID), p.Name, p.Status, nullable(p.Description), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// ListProjects returns projects in scope. Empty or "all" arguments do not filter.
func (r Repo) ListProjects(ctx context.Context, entityID, projectID string) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if scoped(entityID) {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if scoped(projectID) {
		clauses = append(clauses, "id=?")
		args = append(args, projectID)
	}
	query := `SELECT ` + projectColumns + ` FROM projects` + where(clauses) + ` ORDER BY name, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProjectTx(ctx context.Context, tx *sql.Tx, id, status string, description *string) error {
	var (
		fields []string
		args   []any
	)
	if status != "" {
		fields = append(fields, "status=?")
		args = append(args, status)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertAssigneeTx(ctx context.Context, tx *sql.Tx, a domain.Assignee) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assignees(id,name,email,created_at) VALUES (?,?,?,?)`,
		a.ID, a.Name, nullable(a.Email), a.CreatedAt)
	return err
}

func (r Repo) GetAssignee(ctx context.Context, id string) (domain.Assignee, error) {
	var a domain.Assignee
	var email sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,created_at FROM assignees WHERE id=?`, id).Scan(&a.ID, &a.Name, &email, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.Email = email.String
	return a, err
}

func (r Repo) ListAssignees(ctx context.Context) ([]domain.Assignee, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,email,created_at FROM assignees ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignee
	for rows.Next() {
		var a domain.Assignee
		var email sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &email, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Email = email.String
		res = append(res, a)
	}
	return res, rows.Err()
}

func scoped(id string) bool {
	return id != "" && id != domain.ScopeAll
}

func where(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTS(*t)
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

// parseTS accepts RFC3339 and bare dates.
func parseTS(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(dateLayout, v)
}
