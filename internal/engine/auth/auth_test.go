package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsline/internal/config"
	"opsline/internal/db"
	"opsline/internal/domain"
	"opsline/internal/migrate"
	"opsline/internal/repo"
)

func newService(t *testing.T) Service {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	r := repo.Repo{DB: conn}
	ctx := context.Background()
	require.NoError(t, r.WithinTx(ctx, func(tx *sql.Tx) error {
		for _, id := range []string{"ent-1", "ent-2"} {
			if err := r.InsertEntityTx(ctx, tx, domain.Entity{ID: id, Name: id, CreatedAt: "2024-01-01T00:00:00Z"}); err != nil {
				return err
			}
		}
		grants := []domain.RoleGrant{
			{EntityID: "ent-1", ActorID: "ana", RoleID: "analyst"},
			{EntityID: "ent-2", ActorID: "ana", RoleID: "coordinator"},
			{EntityID: domain.ScopeAll, ActorID: "boss", RoleID: "admin"},
		}
		for _, g := range grants {
			if err := r.EnsureActor(ctx, tx, g.ActorID, "2024-01-01T00:00:00Z"); err != nil {
				return err
			}
			if err := r.GrantRole(ctx, tx, g); err != nil {
				return err
			}
		}
		return nil
	}))
	return Service{Repo: r, Config: config.Default()}
}

func TestPermissionsAreScopedPerEntity(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	perms, err := s.ActorPermissions(ctx, "ent-1", "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{PermReportRead}, perms)

	ok, err := s.ActorHasPermission(ctx, "ent-2", "ana", PermPhaseToggle)
	require.NoError(t, err)
	assert.True(t, ok)

	err = s.Require(ctx, "ent-1", "ana", PermPhaseToggle)
	var forbidden ForbiddenError
	require.True(t, errors.As(err, &forbidden))
	assert.Equal(t, "ent-1", forbidden.EntityID)
	assert.Contains(t, forbidden.Error(), "phase.toggle")
}

func TestGlobalGrantAppliesEverywhere(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	require.NoError(t, s.Require(ctx, "ent-2", "boss", PermRBACManage))

	grants, err := s.Grants(ctx, "boss")
	require.NoError(t, err)
	assert.Contains(t, grants[domain.ScopeAll], PermReportGlobal)
}

func TestGrantsAndRoles(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	grants, err := s.Grants(ctx, "ana")
	require.NoError(t, err)
	assert.Len(t, grants, 2)
	assert.Equal(t, []string{PermReportRead}, grants["ent-1"])

	roles, err := s.Roles(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"analyst", "coordinator"}, roles)

	empty, err := s.Grants(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
