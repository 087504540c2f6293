package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"opsline/internal/analytics"
	"opsline/internal/config"
	"opsline/internal/engine"
)

func TestOpenFallsBackToDefaultConfig(t *testing.T) {
	ctx := context.Background()
	ws, err := Open(ctx, t.TempDir(), Options{})
	require.NoError(t, err)
	defer ws.Close()

	require.Equal(t, 14, ws.Config.Report.DefaultWindowDays)
	require.Len(t, ws.Phases.Catalogue(), 8)

	_, err = ws.Engine.InitWorkspace(ctx, "admin")
	require.NoError(t, err)
	_, err = ws.Engine.CreateEntity(ctx, engine.EntityCreateOptions{ID: "ent-1", Name: "Alcaldía", ActorID: "admin"})
	require.NoError(t, err)

	rc := analytics.RequestContext{ActorID: "admin", Grants: map[string][]string{"all": {"report.global", "report.read"}}}
	snap, err := ws.Reports.Report(ctx, rc, analytics.RawFilter{EntityID: "all"})
	require.NoError(t, err)
	require.Equal(t, 0, snap.TotalTasks)
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	yml := []byte("report:\n  default_window_days: 7\n")
	require.NoError(t, os.WriteFile(config.Path(dir), yml, 0o644))

	ws, err := Open(context.Background(), dir, Options{})
	require.NoError(t, err)
	defer ws.Close()
	require.Equal(t, 7, ws.Config.Report.DefaultWindowDays)
	require.Equal(t, 50, ws.Config.Report.TasksListLimit)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("report:\n  default_window_days: -1\n"), 0o644))
	_, err := Open(context.Background(), dir, Options{})
	require.Error(t, err)
}
