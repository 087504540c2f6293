package phase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"opsline/internal/apperr"
	"opsline/internal/domain"
	"opsline/internal/events"
	"opsline/internal/repo"
	"opsline/internal/telemetry"
)

// Engine derives process progress and status from phase completion. Toggles
// on one process are serialized; different processes proceed in parallel.
type Engine struct {
	Store    Store
	Now      func() time.Time
	Observer telemetry.Observer
	Tracer   trace.Tracer

	catalogue []domain.PhaseDefinition
	byCode    map[string]domain.PhaseDefinition
	locks     *keyedMutex
}

// NewEngine loads the catalogue from store and refuses to start when it is
// invalid.
func NewEngine(ctx context.Context, store Store) (*Engine, error) {
	defs, err := store.Catalogue(ctx)
	if err != nil {
		return nil, fmt.Errorf("load phase catalogue: %w", err)
	}
	if err := ValidateCatalogue(defs); err != nil {
		return nil, err
	}
	byCode := make(map[string]domain.PhaseDefinition, len(defs))
	for _, d := range defs {
		byCode[d.Code] = d
	}
	return &Engine{
		Store:     store,
		Now:       time.Now,
		Observer:  telemetry.NoopObserver{},
		Tracer:    telemetry.Tracer(),
		catalogue: append([]domain.PhaseDefinition(nil), defs...),
		byCode:    byCode,
		locks:     newKeyedMutex(),
	}, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Catalogue returns a copy of the loaded phase definitions in position order.
func (e *Engine) Catalogue() []domain.PhaseDefinition {
	return append([]domain.PhaseDefinition(nil), e.catalogue...)
}

// PhaseState is one catalogue phase joined with its tracking row.
type PhaseState struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Weight      int        `json:"weight"`
	Position    int        `json:"position"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`
}

// State is a process with its phase checklist.
type State struct {
	Process  domain.Process       `json:"process"`
	Phases   []PhaseState         `json:"phases"`
	Progress int                  `json:"progress"`
	Status   domain.ProcessStatus `json:"status"`
}

type ToggleInput struct {
	ProcessID string
	PhaseCode string
	Completed bool
	ActorID   string
}

// Toggle sets one phase's completion flag and rewrites the process progress
// and status from the full tracking set, all in one atomic unit.
func (e *Engine) Toggle(ctx context.Context, in ToggleInput) (State, error) {
	started := time.Now()
	ctx, span := e.tracer().Start(ctx, "phase.toggle", trace.WithAttributes(
		attribute.String("opsline.process_id", in.ProcessID),
		attribute.String("opsline.phase_code", in.PhaseCode),
		attribute.Bool("opsline.completed", in.Completed),
	))
	defer span.End()

	state, err := e.toggle(ctx, in)
	fields := map[string]any{"process_id": in.ProcessID, "phase_code": in.PhaseCode, "completed": in.Completed}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		fields["progress"] = state.Progress
		fields["status"] = string(state.Status)
		span.SetAttributes(attribute.Int("opsline.progress", state.Progress))
	}
	telemetry.OrNoop(e.Observer).ObserveUseCase(ctx, telemetry.UseCaseEvent{
		Name:      "phase.toggle",
		Duration:  time.Since(started),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
		StartedAt: started,
	})
	return state, err
}

func (e *Engine) toggle(ctx context.Context, in ToggleInput) (State, error) {
	in.ProcessID = strings.TrimSpace(in.ProcessID)
	in.PhaseCode = strings.TrimSpace(in.PhaseCode)
	if in.ProcessID == "" {
		return State{}, apperr.New(apperr.CodeValidation, "process_id required")
	}
	if _, ok := e.byCode[in.PhaseCode]; !ok {
		return State{}, apperr.WithMetadata(apperr.CodeValidation, fmt.Sprintf("unknown phase %q", in.PhaseCode), map[string]string{"phase_code": in.PhaseCode})
	}

	unlock := e.locks.Lock(in.ProcessID)
	defer unlock()

	var state State
	err := e.Store.WithProcess(ctx, in.ProcessID, func(tx Tx) error {
		proc, err := tx.Process(ctx)
		if err != nil {
			return err
		}
		at := e.now()
		if err := tx.WriteTracking(ctx, in.PhaseCode, in.Completed, in.ActorID, at); err != nil {
			return fmt.Errorf("write phase tracking: %w", err)
		}
		tracking, err := tx.Tracking(ctx)
		if err != nil {
			return fmt.Errorf("read phase tracking: %w", err)
		}
		progress := Progress(e.catalogue, tracking)
		status := DeriveStatus(progress)
		if err := tx.WriteDerived(ctx, progress, status, at); err != nil {
			return fmt.Errorf("write process progress: %w", err)
		}
		if err := tx.AppendEvent(ctx, events.Record{
			Type:       events.PhaseToggled,
			EntityID:   proc.EntityID,
			TargetKind: "process",
			TargetID:   proc.ID,
			ActorID:    in.ActorID,
			Payload: events.EventPayload{
				"phase_code": in.PhaseCode,
				"completed":  in.Completed,
				"progress":   progress,
			},
		}); err != nil {
			return err
		}
		if status != proc.Status {
			if err := tx.AppendEvent(ctx, events.Record{
				Type:       events.ProcessStatusChanged,
				EntityID:   proc.EntityID,
				TargetKind: "process",
				TargetID:   proc.ID,
				ActorID:    in.ActorID,
				Payload:    events.EventPayload{"from": string(proc.Status), "to": string(status), "progress": progress},
			}); err != nil {
				return err
			}
		}
		proc.Progress = progress
		proc.Status = status
		proc.UpdatedAt = at.Format(time.RFC3339)
		state = e.buildState(proc, tracking)
		return nil
	})
	if err != nil {
		return State{}, mapStoreError(err, in.ProcessID)
	}
	return state, nil
}

// Get returns the process checklist without modifying it.
func (e *Engine) Get(ctx context.Context, processID string) (State, error) {
	var state State
	err := e.Store.WithProcess(ctx, processID, func(tx Tx) error {
		proc, err := tx.Process(ctx)
		if err != nil {
			return err
		}
		tracking, err := tx.Tracking(ctx)
		if err != nil {
			return err
		}
		state = e.buildState(proc, tracking)
		return nil
	})
	if err != nil {
		return State{}, mapStoreError(err, processID)
	}
	return state, nil
}

func (e *Engine) buildState(proc domain.Process, tracking []domain.PhaseTracking) State {
	rows := make(map[string]domain.PhaseTracking, len(tracking))
	for _, t := range tracking {
		rows[t.PhaseCode] = t
	}
	phases := make([]PhaseState, 0, len(e.catalogue))
	for _, d := range e.catalogue {
		ps := PhaseState{Code: d.Code, Name: d.Name, Weight: d.Weight, Position: d.Position}
		if t, ok := rows[d.Code]; ok {
			ps.IsCompleted = t.IsCompleted
			ps.CompletedAt = t.CompletedAt
			ps.CompletedBy = t.CompletedBy
		}
		phases = append(phases, ps)
	}
	progress := Progress(e.catalogue, tracking)
	return State{Process: proc, Phases: phases, Progress: progress, Status: DeriveStatus(progress)}
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return telemetry.Tracer()
}

func mapStoreError(err error, processID string) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repo.ErrNotFound):
		return apperr.WithMetadata(apperr.CodeNotFound, fmt.Sprintf("process %s not found", processID), map[string]string{"process_id": processID})
	default:
		return apperr.Wrap(apperr.CodeDataUnavailable, "phase toggle not persisted", err)
	}
}
