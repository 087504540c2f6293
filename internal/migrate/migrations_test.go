package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsline/internal/db"
	"opsline/internal/migrate"
)

func TestMigrateIsIdempotentAndSeedsCatalogue(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, migrate.Migrate(conn))
	require.NoError(t, migrate.Migrate(conn))

	ctx := context.Background()
	v, err := migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	var count, total int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT count(*), sum(weight) FROM phase_definitions`).Scan(&count, &total))
	assert.Equal(t, 8, count)
	assert.Equal(t, 100, total)
}

func TestCompletedAtCheckConstraint(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))

	_, err = conn.Exec(`INSERT INTO tasks(id,project_id,title,status,created_at,updated_at) VALUES ('t1','p1','x','completed','2024-01-01T00:00:00Z','2024-01-01T00:00:00Z')`)
	assert.Error(t, err, "completed task without completed_at must be rejected")
}
