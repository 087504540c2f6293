package analytics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"opsline/internal/apperr"
	"opsline/internal/config"
	"opsline/internal/domain"
	"opsline/internal/telemetry"
)

// Store is the read side of the record store used by reports.
type Store interface {
	FetchWorkItems(ctx context.Context, f domain.ReportFilter) ([]domain.WorkItem, error)
	ListProjects(ctx context.Context, entityID, projectID string) ([]domain.Project, error)
	ListProcesses(ctx context.Context, entityID string) ([]domain.Process, error)
}

// Service produces report snapshots. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	Store    Store
	Config   *config.Config
	Cache    *SnapshotCache
	Observer telemetry.Observer
	Tracer   trace.Tracer
	Now      func() time.Time
}

func NewService(store Store, cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cache, err := NewSnapshotCache(cfg.Report.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		Store:    store,
		Config:   cfg,
		Cache:    cache,
		Observer: telemetry.NoopObserver{},
		Tracer:   telemetry.Tracer(),
		Now:      time.Now,
	}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Report normalizes raw, checks the caller's scope, fetches the matching
// records and assembles a snapshot. Filter and authorization failures are
// returned before anything is fetched; a fetch failure fails the whole request.
func (s *Service) Report(ctx context.Context, rc RequestContext, raw RawFilter) (domain.ReportSnapshot, error) {
	started := time.Now()
	tracer := s.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	ctx, span := tracer.Start(ctx, "report.generate", trace.WithAttributes(
		attribute.String("opsline.actor_id", rc.ActorID),
	))
	defer span.End()

	snap, cached, err := s.report(ctx, rc, raw)
	fields := map[string]any{"actor_id": rc.ActorID, "cached": cached}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields["code"] = string(apperr.CodeOf(err))
	} else {
		fields["entity_id"] = snap.Filter.EntityID
		fields["total_tasks"] = snap.TotalTasks
		span.SetAttributes(
			attribute.String("opsline.entity_id", snap.Filter.EntityID),
			attribute.Int("opsline.total_tasks", snap.TotalTasks),
			attribute.Bool("opsline.cached", cached),
		)
	}
	telemetry.OrNoop(s.Observer).ObserveUseCase(ctx, telemetry.UseCaseEvent{
		Name:      "report.generate",
		Duration:  time.Since(started),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
		StartedAt: started,
	})
	return snap, err
}

func (s *Service) report(ctx context.Context, rc RequestContext, raw RawFilter) (domain.ReportSnapshot, bool, error) {
	filter, err := NormalizeFilter(raw, rc)
	if err != nil {
		return domain.ReportSnapshot{}, false, err
	}
	if err := Authorize(rc, filter); err != nil {
		return domain.ReportSnapshot{}, false, err
	}
	cfg := s.Config
	if cfg == nil {
		cfg = config.Default()
	}
	now := s.now()
	win := Window(filter, now, cfg.Report.DefaultWindowDays)

	items, err := s.Store.FetchWorkItems(ctx, filter)
	if err != nil {
		return domain.ReportSnapshot{}, false, apperr.Wrap(apperr.CodeDataUnavailable, "fetch work items", err)
	}
	projects, err := s.Store.ListProjects(ctx, filter.EntityID, filter.ProjectID)
	if err != nil {
		return domain.ReportSnapshot{}, false, apperr.Wrap(apperr.CodeDataUnavailable, "fetch projects", err)
	}
	processes, err := s.Store.ListProcesses(ctx, filter.EntityID)
	if err != nil {
		return domain.ReportSnapshot{}, false, apperr.Wrap(apperr.CodeDataUnavailable, "fetch processes", err)
	}

	burn := win.Burndown(items)
	key := ""
	if s.Cache != nil {
		key = contentKey(filter, burn, now, items, projects, processes)
		if snap, ok := s.Cache.Get(key); ok {
			return snap, true, nil
		}
	}

	team := ScoreTeam(items, now, ScoringParamsFromConfig(cfg))
	snap := Assemble(Parts{
		Filter:        filter,
		Totals:        Aggregate(items),
		Team:          team,
		Burndown:      burn,
		Projects:      projects,
		Processes:     processes,
		Items:         items,
		TasksLimit:    cfg.Report.TasksListLimit,
		LoadThreshold: cfg.Report.LoadThreshold,
		HourlyRate:    cfg.Report.HourlyRate,
	})
	s.Cache.Add(key, snap)
	return snap, false, nil
}
