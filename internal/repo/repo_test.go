package repo_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsline/internal/db"
	"opsline/internal/domain"
	"opsline/internal/migrate"
	"opsline/internal/repo"
)

const ts = "2024-01-01T00:00:00Z"

func newTestRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}, context.Background()
}

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T, r repo.Repo, ctx context.Context) {
	t.Helper()
	require.NoError(t, r.WithinTx(ctx, func(tx *sql.Tx) error {
		for _, e := range []domain.Entity{{ID: "ent-a", Name: "A", CreatedAt: ts}, {ID: "ent-b", Name: "B", CreatedAt: ts}} {
			if err := r.InsertEntityTx(ctx, tx, e); err != nil {
				return err
			}
		}
		projects := []domain.Project{
			{ID: "prj-a", EntityID: "ent-a", Name: "Alpha", Status: "active", CreatedAt: ts},
			{ID: "prj-b", EntityID: "ent-b", Name: "Beta", Status: "active", CreatedAt: ts},
			{ID: "prj-loose", Name: "Loose", Status: "active", CreatedAt: ts},
		}
		for _, p := range projects {
			if err := r.InsertProjectTx(ctx, tx, p); err != nil {
				return err
			}
		}
		if err := r.InsertAssigneeTx(ctx, tx, domain.Assignee{ID: "asg-1", Name: "Ana", Email: "ana@example.com", CreatedAt: ts}); err != nil {
			return err
		}
		created := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
		done := created.Add(48 * time.Hour)
		items := []domain.WorkItem{
			{ID: "t1", ProjectID: "prj-a", Title: "a1", Status: domain.StatusCompleted, Priority: domain.PriorityHigh, CompletedAt: &done, AssigneeID: ptr("asg-1"), EstimatedHours: ptr(4.0), CreatedAt: created, UpdatedAt: created},
			{ID: "t2", ProjectID: "prj-a", Title: "a2", Status: domain.StatusPending, CreatedAt: created.AddDate(0, 0, 1), UpdatedAt: created},
			{ID: "t3", ProjectID: "prj-b", Title: "b1", Status: domain.StatusInProgress, Priority: domain.PriorityLow, CreatedAt: created, UpdatedAt: created},
			{ID: "t4", ProjectID: "prj-loose", Title: "loose", Status: domain.StatusReview, CreatedAt: created, UpdatedAt: created},
			{ID: "t5", ProjectID: "prj-missing", Title: "orphan", Status: domain.StatusPending, CreatedAt: created.AddDate(0, 0, 10), UpdatedAt: created},
		}
		for _, it := range items {
			if err := r.InsertTaskTx(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	}))
}

func ids(items []domain.WorkItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestFetchWorkItemsFilters(t *testing.T) {
	r, ctx := newTestRepo(t)
	seed(t, r, ctx)

	all, err := r.FetchWorkItems(ctx, domain.ReportFilter{ProjectID: domain.ScopeAll, EntityID: domain.ScopeAll, AssigneeID: domain.ScopeAll})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "t5", all[0].ID, "newest first")

	byEntity, err := r.FetchWorkItems(ctx, domain.ReportFilter{ProjectID: domain.ScopeAll, EntityID: "ent-a"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2", "t4", "t5"}, ids(byEntity), "unresolved entity links are kept")

	byProject, err := r.FetchWorkItems(ctx, domain.ReportFilter{ProjectID: "prj-b", EntityID: domain.ScopeAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3"}, ids(byProject))

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	end := start
	windowed, err := r.FetchWorkItems(ctx, domain.ReportFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t3", "t4"}, ids(windowed), "end day is inclusive")

	unspecified, err := r.FetchWorkItems(ctx, domain.ReportFilter{Priorities: []domain.Priority{domain.PriorityUnspecified, domain.PriorityHigh}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2", "t4", "t5"}, ids(unspecified))

	statuses, err := r.FetchWorkItems(ctx, domain.ReportFilter{Statuses: []domain.TaskStatus{domain.StatusCompleted}, AssigneeID: "asg-1"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	got := statuses[0]
	require.NotNil(t, got.Assignee)
	assert.Equal(t, "Ana", got.Assignee.Name)
	require.NotNil(t, got.EntityID)
	assert.Equal(t, "ent-a", *got.EntityID)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC), *got.CompletedAt)
	assert.Equal(t, 4.0, *got.EstimatedHours)
	assert.Nil(t, got.ActualHours)
}

func TestFetchWorkItemsRejectsMalformedRows(t *testing.T) {
	r, ctx := newTestRepo(t)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,status,created_at,updated_at) VALUES ('bad','p','x','blocked',?,?)`, ts, ts)
	require.NoError(t, err)
	_, err = r.FetchWorkItems(ctx, domain.ReportFilter{})
	assert.Error(t, err)
}

func TestPhaseTrackingRoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)
	seed(t, r, ctx)

	defs, err := r.ListPhaseDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 8)
	assert.Equal(t, "ficha_tecnica", defs[0].Code)
	codes := make([]string, 0, len(defs))
	for _, d := range defs {
		codes = append(codes, d.Code)
	}

	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.WithinTx(ctx, func(tx *sql.Tx) error {
		p := domain.Process{ID: "proc-1", EntityID: "ent-a", Title: "Hire", Kind: "hiring", Status: domain.ProcessInProgress, CreatedAt: ts, UpdatedAt: ts}
		if err := r.InsertProcessTx(ctx, tx, p); err != nil {
			return err
		}
		if err := r.SeedPhaseTrackingTx(ctx, tx, p.ID, codes); err != nil {
			return err
		}
		if err := r.SetPhaseTrackingTx(ctx, tx, p.ID, "estudio_previo", true, "coord", at); err != nil {
			return err
		}
		return r.UpdateProcessDerivedTx(ctx, tx, p.ID, 20, domain.ProcessInProgress, at)
	}))

	require.NoError(t, r.WithinTx(ctx, func(tx *sql.Tx) error {
		rows, err := r.ListPhaseTrackingTx(ctx, tx, "proc-1")
		require.NoError(t, err)
		require.Len(t, rows, 8)
		for _, row := range rows {
			if row.PhaseCode == "estudio_previo" {
				assert.True(t, row.IsCompleted)
				require.NotNil(t, row.CompletedAt)
				assert.Equal(t, at, *row.CompletedAt)
				assert.Equal(t, "coord", *row.CompletedBy)
			} else {
				assert.False(t, row.IsCompleted)
			}
		}
		if err := r.SetPhaseTrackingTx(ctx, tx, "proc-1", "estudio_previo", false, "coord", at); err != nil {
			return err
		}
		rows, err = r.ListPhaseTrackingTx(ctx, tx, "proc-1")
		require.NoError(t, err)
		assert.Nil(t, rows[3].CompletedAt)
		assert.Nil(t, rows[3].CompletedBy)
		assert.ErrorIs(t, r.SetPhaseTrackingTx(ctx, tx, "proc-1", "nope", true, "coord", at), repo.ErrNotFound)
		return nil
	}))

	p, err := r.GetProcess(ctx, "proc-1")
	require.NoError(t, err)
	assert.Equal(t, 20, p.Progress)

	list, err := r.ListProcesses(ctx, "ent-b")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRoleGrantsAndAPIKeys(t *testing.T) {
	r, ctx := newTestRepo(t)
	require.NoError(t, r.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := r.EnsureActor(ctx, tx, "ana", ts); err != nil {
			return err
		}
		if err := r.GrantRole(ctx, tx, domain.RoleGrant{EntityID: "ent-a", ActorID: "ana", RoleID: "coordinator"}); err != nil {
			return err
		}
		if err := r.GrantRole(ctx, tx, domain.RoleGrant{EntityID: domain.ScopeAll, ActorID: "ana", RoleID: "analyst"}); err != nil {
			return err
		}
		return r.InsertAPIKeyTx(ctx, tx, domain.APIKey{ID: "k1", ActorID: "ana", KeyHash: repo.HashAPIKey(" secret "), CreatedAt: ts})
	}))

	roles, err := r.ActorRoles(ctx, "ent-a", "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"analyst", "coordinator"}, roles)

	roles, err = r.ActorRoles(ctx, "ent-b", "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"analyst"}, roles)

	key, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("secret"))
	require.NoError(t, err)
	assert.Equal(t, "ana", key.ActorID)

	err = r.WithinTx(ctx, func(tx *sql.Tx) error {
		return r.RevokeRole(ctx, tx, domain.RoleGrant{EntityID: "ent-b", ActorID: "ana", RoleID: "analyst"})
	})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
