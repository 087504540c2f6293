package repo

import (
	"context"
	"database/sql"

	"opsline/internal/domain"
)

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID string, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, created_at) VALUES (?,?)`, actorID, now)
	return err
}

func (r Repo) GrantRole(ctx context.Context, tx *sql.Tx, g domain.RoleGrant) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO role_grants(entity_id, actor_id, role_id) VALUES (?,?,?)`, g.EntityID, g.ActorID, g.RoleID)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, tx *sql.Tx, g domain.RoleGrant) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM role_grants WHERE entity_id=? AND actor_id=? AND role_id=?`, g.EntityID, g.ActorID, g.RoleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActorRoles returns the roles granted to the actor on the entity plus the
// roles granted globally.
func (r Repo) ActorRoles(ctx context.Context, entityID, actorID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT role_id FROM role_grants WHERE actor_id=? AND (entity_id=? OR entity_id=?) ORDER BY role_id`,
		actorID, entityID, domain.ScopeAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r Repo) ListRoleGrants(ctx context.Context, actorID string) ([]domain.RoleGrant, error) {
	query := `SELECT entity_id, actor_id, role_id FROM role_grants`
	var args []any
	if actorID != "" {
		query += ` WHERE actor_id=?`
		args = append(args, actorID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY entity_id, actor_id, role_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RoleGrant
	for rows.Next() {
		var g domain.RoleGrant
		if err := rows.Scan(&g.EntityID, &g.ActorID, &g.RoleID); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}
