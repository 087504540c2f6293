package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"opsline/internal/domain"
)

const processColumns = `id,entity_id,title,kind,progress,status,created_at,updated_at`

func scanProcess(scan func(dest ...any) error) (domain.Process, error) {
	var p domain.Process
	var status string
	if err := scan(&p.ID, &p.EntityID, &p.Title, &p.Kind, &p.Progress, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return p, ErrNotFound
		}
		return p, err
	}
	parsed, err := domain.ParseProcessStatus(status)
	if err != nil {
		return p, fmt.Errorf("process %s: %w", p.ID, err)
	}
	p.Status = parsed
	return p, nil
}

func (r Repo) InsertProcessTx(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO processes(`+processColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.EntityID, p.Title, p.Kind, p.Progress, string(p.Status), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	return scanProcess(r.DB.QueryRowContext(ctx, `SELECT `+processColumns+` FROM processes WHERE id=?`, id).Scan)
}

func (r Repo) GetProcessTx(ctx context.Context, tx *sql.Tx, id string) (domain.Process, error) {
	return scanProcess(tx.QueryRowContext(ctx, `SELECT `+processColumns+` FROM processes WHERE id=?`, id).Scan)
}

// ListProcesses returns processes for an entity, or all of them for "all".
func (r Repo) ListProcesses(ctx context.Context, entityID string) ([]domain.Process, error) {
	var clauses []string
	var args []any
	if scoped(entityID) {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+processColumns+` FROM processes`+where(clauses)+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Process
	for rows.Next() {
		p, err := scanProcess(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProcessDerivedTx writes the progress/status pair derived from the tracking set.
func (r Repo) UpdateProcessDerivedTx(ctx context.Context, tx *sql.Tx, id string, progress int, status domain.ProcessStatus, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE processes SET progress=?, status=?, updated_at=? WHERE id=?`, progress, string(status), formatTS(now), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListPhaseDefinitions(ctx context.Context) ([]domain.PhaseDefinition, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT code,name,weight,position FROM phase_definitions ORDER BY position, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PhaseDefinition
	for rows.Next() {
		var d domain.PhaseDefinition
		if err := rows.Scan(&d.Code, &d.Name, &d.Weight, &d.Position); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// SeedPhaseTrackingTx creates one incomplete tracking row per phase code.
func (r Repo) SeedPhaseTrackingTx(ctx context.Context, tx *sql.Tx, processID string, codes []string) error {
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO phase_tracking(process_id,phase_code,is_completed) VALUES (?,?,0)`, processID, code); err != nil {
			return fmt.Errorf("seed phase %s: %w", code, err)
		}
	}
	return nil
}

func (r Repo) ListPhaseTrackingTx(ctx context.Context, tx *sql.Tx, processID string) ([]domain.PhaseTracking, error) {
	rows, err := tx.QueryContext(ctx, `SELECT pt.process_id,pt.phase_code,pt.is_completed,pt.completed_at,pt.completed_by
FROM phase_tracking pt JOIN phase_definitions pd ON pd.code = pt.phase_code
WHERE pt.process_id=? ORDER BY pd.position, pd.code`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PhaseTracking
	for rows.Next() {
		var pt domain.PhaseTracking
		var completedAt, completedBy sql.NullString
		if err := rows.Scan(&pt.ProcessID, &pt.PhaseCode, &pt.IsCompleted, &completedAt, &completedBy); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			ts, err := parseTS(completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("phase %s: invalid completed_at: %w", pt.PhaseCode, err)
			}
			pt.CompletedAt = &ts
		}
		if completedBy.Valid {
			pt.CompletedBy = &completedBy.String
		}
		res = append(res, pt)
	}
	return res, rows.Err()
}

// SetPhaseTrackingTx stores a completion flag. Completing records the time and
// actor; un-completing clears both.
func (r Repo) SetPhaseTrackingTx(ctx context.Context, tx *sql.Tx, processID, phaseCode string, completed bool, actorID string, at time.Time) error {
	var completedAt, completedBy any
	if completed {
		completedAt = formatTS(at)
		completedBy = nullable(actorID)
	}
	res, err := tx.ExecContext(ctx, `UPDATE phase_tracking SET is_completed=?, completed_at=?, completed_by=? WHERE process_id=? AND phase_code=?`,
		completed, completedAt, completedBy, processID, phaseCode)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
