package phase

import (
	"context"
	"database/sql"
	"time"

	"opsline/internal/domain"
	"opsline/internal/events"
	"opsline/internal/repo"
)

// Store is the record-store side of the phase engine.
type Store interface {
	Catalogue(ctx context.Context) ([]domain.PhaseDefinition, error)
	// WithProcess runs fn atomically against one process: either every write
	// made through the Tx is kept or none is.
	WithProcess(ctx context.Context, processID string, fn func(Tx) error) error
}

// Tx is the set of reads and writes available inside WithProcess.
type Tx interface {
	Process(ctx context.Context) (domain.Process, error)
	Tracking(ctx context.Context) ([]domain.PhaseTracking, error)
	WriteTracking(ctx context.Context, phaseCode string, completed bool, actorID string, at time.Time) error
	WriteDerived(ctx context.Context, progress int, status domain.ProcessStatus, at time.Time) error
	AppendEvent(ctx context.Context, rec events.Record) error
}

// SQLStore backs the engine with the workspace database.
type SQLStore struct {
	Repo   repo.Repo
	Events events.Writer
}

func (s SQLStore) Catalogue(ctx context.Context) ([]domain.PhaseDefinition, error) {
	return s.Repo.ListPhaseDefinitions(ctx)
}

func (s SQLStore) WithProcess(ctx context.Context, processID string, fn func(Tx) error) error {
	return s.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		return fn(sqlTx{repo: s.Repo, events: s.Events, tx: tx, processID: processID})
	})
}

type sqlTx struct {
	repo      repo.Repo
	events    events.Writer
	tx        *sql.Tx
	processID string
}

func (t sqlTx) Process(ctx context.Context) (domain.Process, error) {
	return t.repo.GetProcessTx(ctx, t.tx, t.processID)
}

func (t sqlTx) Tracking(ctx context.Context) ([]domain.PhaseTracking, error) {
	return t.repo.ListPhaseTrackingTx(ctx, t.tx, t.processID)
}

func (t sqlTx) WriteTracking(ctx context.Context, phaseCode string, completed bool, actorID string, at time.Time) error {
	if err := t.repo.SeedPhaseTrackingTx(ctx, t.tx, t.processID, []string{phaseCode}); err != nil {
		return err
	}
	return t.repo.SetPhaseTrackingTx(ctx, t.tx, t.processID, phaseCode, completed, actorID, at)
}

func (t sqlTx) WriteDerived(ctx context.Context, progress int, status domain.ProcessStatus, at time.Time) error {
	return t.repo.UpdateProcessDerivedTx(ctx, t.tx, t.processID, progress, status, at)
}

func (t sqlTx) AppendEvent(ctx context.Context, rec events.Record) error {
	return t.events.Append(ctx, t.tx, rec)
}
