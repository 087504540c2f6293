package phase_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsline/internal/apperr"
	"opsline/internal/db"
	"opsline/internal/domain"
	"opsline/internal/events"
	"opsline/internal/migrate"
	"opsline/internal/phase"
	"opsline/internal/repo"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	Ctx    context.Context
	Repo   repo.Repo
	Store  phase.SQLStore
	Engine *phase.Engine
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	ctx := context.Background()
	r := repo.Repo{DB: conn}
	store := phase.SQLStore{Repo: r, Events: events.Writer{Now: func() time.Time { return fixedNow }}}
	eng, err := phase.NewEngine(ctx, store)
	require.NoError(t, err)
	eng.Now = func() time.Time { return fixedNow }
	require.NoError(t, r.WithinTx(ctx, func(tx *sql.Tx) error {
		return r.InsertEntityTx(ctx, tx, domain.Entity{ID: "ent-1", Name: "Entity", CreatedAt: "2024-01-01T00:00:00Z"})
	}))
	return testEnv{Ctx: ctx, Repo: r, Store: store, Engine: eng}
}

func (env testEnv) newProcess(t *testing.T, id string) {
	t.Helper()
	codes := make([]string, 0, 8)
	for _, d := range env.Engine.Catalogue() {
		codes = append(codes, d.Code)
	}
	require.NoError(t, env.Repo.WithinTx(env.Ctx, func(tx *sql.Tx) error {
		p := domain.Process{ID: id, EntityID: "ent-1", Title: "Contratación " + id, Kind: "hiring", Status: domain.ProcessInProgress,
			CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"}
		if err := env.Repo.InsertProcessTx(env.Ctx, tx, p); err != nil {
			return err
		}
		return env.Repo.SeedPhaseTrackingTx(env.Ctx, tx, id, codes)
	}))
}

func (env testEnv) toggle(t *testing.T, processID, code string, completed bool) phase.State {
	t.Helper()
	st, err := env.Engine.Toggle(env.Ctx, phase.ToggleInput{ProcessID: processID, PhaseCode: code, Completed: completed, ActorID: "coord"})
	require.NoError(t, err)
	return st
}

func TestToggleScenario(t *testing.T) {
	env := newTestEnv(t)
	env.newProcess(t, "proc-1")

	env.toggle(t, "proc-1", "ficha_tecnica", true)
	st := env.toggle(t, "proc-1", "estudio_mercado", true)
	assert.Equal(t, 25, st.Progress)
	assert.Equal(t, domain.ProcessInProgress, st.Status)
	require.Len(t, st.Phases, 8)
	assert.True(t, st.Phases[0].IsCompleted)
	require.NotNil(t, st.Phases[0].CompletedAt)
	assert.Equal(t, fixedNow, *st.Phases[0].CompletedAt)
	assert.Equal(t, "coord", *st.Phases[0].CompletedBy)

	for _, d := range env.Engine.Catalogue() {
		st = env.toggle(t, "proc-1", d.Code, true)
	}
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, domain.ProcessLegalized, st.Status)

	stored, err := env.Repo.GetProcess(env.Ctx, "proc-1")
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Progress)
	assert.Equal(t, domain.ProcessLegalized, stored.Status)

	changes, err := env.Repo.LatestEvents(env.Ctx, repo.EventQuery{Type: events.ProcessStatusChanged})
	require.NoError(t, err)
	require.Len(t, changes, 2, "in_progress -> awarded -> legalized")
	assert.Contains(t, changes[0].Payload, `"to":"legalized"`)
	toggles, err := env.Repo.LatestEvents(env.Ctx, repo.EventQuery{Type: events.PhaseToggled, Limit: 100})
	require.NoError(t, err)
	assert.Len(t, toggles, 10)
}

func TestToggleAwardedAndUncomplete(t *testing.T) {
	env := newTestEnv(t)
	env.newProcess(t, "proc-1")
	var st phase.State
	for _, d := range env.Engine.Catalogue() {
		if d.Code == "legalizacion_contrato" {
			continue
		}
		st = env.toggle(t, "proc-1", d.Code, true)
	}
	assert.Equal(t, 90, st.Progress)
	assert.Equal(t, domain.ProcessAwarded, st.Status)

	st = env.toggle(t, "proc-1", "estudio_previo", false)
	assert.Equal(t, 70, st.Progress)
	assert.Equal(t, domain.ProcessInProgress, st.Status)
	for _, p := range st.Phases {
		if p.Code == "estudio_previo" {
			assert.False(t, p.IsCompleted)
			assert.Nil(t, p.CompletedAt)
			assert.Nil(t, p.CompletedBy)
		}
	}
}

func TestToggleDoesNotEnforceOrder(t *testing.T) {
	env := newTestEnv(t)
	env.newProcess(t, "proc-1")
	st := env.toggle(t, "proc-1", "legalizacion_contrato", true)
	assert.Equal(t, 10, st.Progress)
	assert.Equal(t, domain.ProcessInProgress, st.Status, "last phase alone does not legalize")
}

func TestProgressMonotonicInAnyOrder(t *testing.T) {
	env := newTestEnv(t)
	rng := rand.New(rand.NewSource(99))
	defs := env.Engine.Catalogue()
	for round := 0; round < 5; round++ {
		id := fmt.Sprintf("proc-%d", round)
		env.newProcess(t, id)
		order := rng.Perm(len(defs))
		last := 0
		for i, idx := range order {
			st := env.toggle(t, id, defs[idx].Code, true)
			assert.GreaterOrEqual(t, st.Progress, last)
			last = st.Progress
			if i < len(order)-1 {
				assert.Less(t, st.Progress, 100, "100 only once every phase is complete")
			}
		}
		assert.Equal(t, 100, last)
	}
}

func TestConcurrentTogglesOnSameProcess(t *testing.T) {
	env := newTestEnv(t)
	env.newProcess(t, "proc-a")
	env.newProcess(t, "proc-b")

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for _, id := range []string{"proc-a", "proc-b"} {
		for _, d := range env.Engine.Catalogue() {
			wg.Add(1)
			go func(id, code string) {
				defer wg.Done()
				_, err := env.Engine.Toggle(env.Ctx, phase.ToggleInput{ProcessID: id, PhaseCode: code, Completed: true, ActorID: "coord"})
				errs <- err
			}(id, d.Code)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	for _, id := range []string{"proc-a", "proc-b"} {
		p, err := env.Repo.GetProcess(env.Ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 100, p.Progress)
		assert.Equal(t, domain.ProcessLegalized, p.Status)
	}
}

type failingStore struct {
	phase.SQLStore
}

func (s failingStore) WithProcess(ctx context.Context, processID string, fn func(phase.Tx) error) error {
	return s.SQLStore.WithProcess(ctx, processID, func(tx phase.Tx) error {
		return fn(failingTx{Tx: tx})
	})
}

type failingTx struct {
	phase.Tx
}

func (failingTx) WriteDerived(context.Context, int, domain.ProcessStatus, time.Time) error {
	return errors.New("disk full")
}

func TestToggleFailureLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	env.newProcess(t, "proc-1")
	env.toggle(t, "proc-1", "ficha_tecnica", true)

	broken, err := phase.NewEngine(env.Ctx, failingStore{SQLStore: env.Store})
	require.NoError(t, err)
	_, err = broken.Toggle(env.Ctx, phase.ToggleInput{ProcessID: "proc-1", PhaseCode: "estudio_previo", Completed: true, ActorID: "coord"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrDataUnavailable)

	st, err := env.Engine.Get(env.Ctx, "proc-1")
	require.NoError(t, err)
	assert.Equal(t, 10, st.Progress)
	for _, p := range st.Phases {
		assert.Equal(t, p.Code == "ficha_tecnica", p.IsCompleted, p.Code)
	}
	stored, err := env.Repo.GetProcess(env.Ctx, "proc-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Progress)
	toggles, err := env.Repo.LatestEvents(env.Ctx, repo.EventQuery{Type: events.PhaseToggled})
	require.NoError(t, err)
	assert.Len(t, toggles, 1)
}

func TestToggleRejectsUnknownInputs(t *testing.T) {
	env := newTestEnv(t)
	env.newProcess(t, "proc-1")

	_, err := env.Engine.Toggle(env.Ctx, phase.ToggleInput{ProcessID: "proc-1", PhaseCode: "firma", Completed: true})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.Engine.Toggle(env.Ctx, phase.ToggleInput{ProcessID: "missing", PhaseCode: "ficha_tecnica", Completed: true})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.Engine.Get(env.Ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNewEngineRejectsCorruptCatalogue(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Repo.DB.ExecContext(env.Ctx, `UPDATE phase_definitions SET weight=5 WHERE code='estudio_previo'`)
	require.NoError(t, err)
	_, err = phase.NewEngine(env.Ctx, env.Store)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidCatalogue)
}
