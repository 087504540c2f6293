package engine_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"opsline/internal/apperr"
	"opsline/internal/config"
	"opsline/internal/db"
	"opsline/internal/domain"
	"opsline/internal/engine"
	"opsline/internal/engine/auth"
	"opsline/internal/events"
	"opsline/internal/migrate"
	"opsline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	fixed := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	eng.Now = fixed
	eng.Events = events.Writer{Now: fixed}
	ctx := context.Background()
	if _, err := eng.CreateEntity(ctx, engine.EntityCreateOptions{ID: "ent-1", Name: "Secretaría", ActorID: "tester"}); err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if _, err := eng.CreateProject(ctx, engine.ProjectCreateOptions{ID: "proj-1", EntityID: "ent-1", Name: "Obras", ActorID: "tester"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func strPtr(s string) *string { return &s }

func TestTaskCompletionStampsCompletedAt(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: "proj-1",
		Title:     "Revisar pliegos",
		Priority:  "Alta",
		DueDate:   "2024-01-10",
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != domain.StatusPending || task.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected labels: %s %s", task.Status, task.Priority)
	}
	if task.EntityID == nil || *task.EntityID != "ent-1" {
		t.Fatalf("expected entity from project, got %v", task.EntityID)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: strPtr("Completada"), ActorID: "tester"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.Status != domain.StatusCompleted || task.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %s %v", task.Status, task.CompletedAt)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: strPtr("review"), ActorID: "tester"})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if task.CompletedAt != nil {
		t.Fatalf("completed_at should clear when reopening")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		opts engine.TaskCreateOptions
		code apperr.Code
	}{
		{"missing title", engine.TaskCreateOptions{ProjectID: "proj-1"}, apperr.CodeValidation},
		{"unknown project", engine.TaskCreateOptions{ProjectID: "nope", Title: "x"}, apperr.CodeNotFound},
		{"unknown assignee", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", AssigneeID: "ghost"}, apperr.CodeNotFound},
		{"bad status", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", Status: "exploded"}, apperr.CodeValidation},
		{"bad due date", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", DueDate: "tomorrow"}, apperr.CodeValidation},
		{"negative hours", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", ActualHours: floatPtr(-1)}, apperr.CodeValidation},
		{"progress above 100", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", Progress: floatPtr(101)}, apperr.CodeValidation},
		{"negative progress", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", Progress: floatPtr(-5)}, apperr.CodeValidation},
		{"malformed id", engine.TaskCreateOptions{ID: "bad id!", ProjectID: "proj-1", Title: "x"}, apperr.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateTask(env.Ctx, tc.opts)
			if apperr.CodeOf(err) != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestDuplicateEntityIsConflict(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateEntity(env.Ctx, engine.EntityCreateOptions{ID: "ent-1", Name: "Again"})
	if apperr.CodeOf(err) != apperr.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateProjectStatus(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: "proj-1", Status: "paused", Description: strPtr("on hold"), ActorID: "tester"})
	if err != nil {
		t.Fatalf("update project: %v", err)
	}
	if p.Status != "paused" || p.Description != "on hold" {
		t.Fatalf("unexpected project: %+v", p)
	}
	if _, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: "proj-1", Status: "deleted"}); apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateProcessSeedsEveryPhase(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProcess(env.Ctx, engine.ProcessCreateOptions{ID: "proc-1", EntityID: "ent-1", Title: "Contratación vigilancia", ActorID: "tester"})
	if err != nil {
		t.Fatalf("create process: %v", err)
	}
	if p.Progress != 0 || p.Status != domain.ProcessInProgress || p.Kind != "hiring" {
		t.Fatalf("unexpected process: %+v", p)
	}
	var rows []domain.PhaseTracking
	err = env.Engine.Repo.WithinTx(env.Ctx, func(tx *sql.Tx) error {
		var err error
		rows, err = env.Engine.Repo.ListPhaseTrackingTx(env.Ctx, tx, "proc-1")
		return err
	})
	if err != nil {
		t.Fatalf("list tracking: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected 8 tracking rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.IsCompleted {
			t.Fatalf("phase %s should start incomplete", r.PhaseCode)
		}
	}
	if _, err := env.Engine.CreateProcess(env.Ctx, engine.ProcessCreateOptions{EntityID: "ghost", Title: "x"}); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected not found for unknown entity, got %v", err)
	}
	if _, err := env.Engine.CreateProcess(env.Ctx, engine.ProcessCreateOptions{EntityID: "ent-1", Title: "x", Kind: "lottery"}); apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("expected validation error for kind, got %v", err)
	}
}

func TestInitWorkspaceBootstrapsOnce(t *testing.T) {
	env := newTestEnv(t)
	granted, err := env.Engine.InitWorkspace(env.Ctx, "founder")
	if err != nil || !granted {
		t.Fatalf("first init: granted=%v err=%v", granted, err)
	}
	granted, err = env.Engine.InitWorkspace(env.Ctx, "latecomer")
	if err != nil || granted {
		t.Fatalf("second init should be a no-op: granted=%v err=%v", granted, err)
	}
	if err := env.Engine.Auth.Require(env.Ctx, "ent-1", "founder", auth.PermReportGlobal); err != nil {
		t.Fatalf("founder should be global admin: %v", err)
	}
	var fe auth.ForbiddenError
	if err := env.Engine.Auth.Require(env.Ctx, "ent-1", "latecomer", auth.PermReportRead); !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestGrantAndRevokeRoles(t *testing.T) {
	env := newTestEnv(t)
	g := domain.RoleGrant{EntityID: "ent-1", ActorID: "ana", RoleID: "coordinator"}
	if err := env.Engine.GrantRole(env.Ctx, g, "tester"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	id, err := env.Engine.WhoAmI(env.Ctx, "ana")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if len(id.Roles) != 1 || id.Roles[0] != "coordinator" {
		t.Fatalf("unexpected roles: %v", id.Roles)
	}
	if perms := id.Grants["ent-1"]; len(perms) == 0 {
		t.Fatalf("expected permissions on ent-1")
	}
	if err := env.Engine.GrantRole(env.Ctx, domain.RoleGrant{EntityID: "ent-1", ActorID: "ana", RoleID: "emperor"}, "tester"); apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("expected unknown role error, got %v", err)
	}
	if err := env.Engine.RevokeRole(env.Ctx, g, "tester"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := env.Engine.RevokeRole(env.Ctx, g, "tester"); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("second revoke should be not found, got %v", err)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.CreateAPIKey(env.Ctx, "bot", "ci", "tester")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if created.Key == "" || created.KeyHash == created.Key {
		t.Fatalf("raw key must be returned and only its hash stored")
	}
	stored, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(created.Key))
	if err != nil || stored.ActorID != "bot" {
		t.Fatalf("lookup by hash: %+v %v", stored, err)
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, created.ID, "tester"); err != nil {
		t.Fatalf("revoke key: %v", err)
	}
	if _, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(created.Key)); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected revoked key to be gone, got %v", err)
	}
}

func TestMutationsAppendEvents(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateAssignee(env.Ctx, engine.AssigneeCreateOptions{ID: "asg-1", Name: "Luisa", ActorID: "tester"}); err != nil {
		t.Fatalf("create assignee: %v", err)
	}
	evs, err := env.Engine.Repo.LatestEvents(env.Ctx, repo.EventQuery{})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	want := []string{events.AssigneeCreated, events.ProjectCreated, events.EntityCreated}
	if len(evs) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(evs))
	}
	for i, typ := range want {
		if evs[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, evs[i].Type)
		}
	}
}
