package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// UseCaseEvent captures one execution of a report or phase use case.
type UseCaseEvent struct {
	Name      string
	Duration  time.Duration
	Success   bool
	Err       error
	Fields    map[string]any
	StartedAt time.Time
}

// Observer receives use-case execution events.
type Observer interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopObserver ignores all events.
type NoopObserver struct{}

func (NoopObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

type logObserver struct {
	logger *slog.Logger
}

// NewLogObserver writes one structured line per use case to logger.
func NewLogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		return NoopObserver{}
	}
	return &logObserver{logger: logger}
}

func (o *logObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	attrs := make([]any, 0, 6+len(event.Fields)*2)
	attrs = append(attrs,
		"use_case", event.Name,
		"duration_ms", event.Duration.Milliseconds(),
		"success", event.Success,
	)
	for k, v := range event.Fields {
		attrs = append(attrs, k, v)
	}
	if event.Err != nil {
		attrs = append(attrs, "error", event.Err.Error())
		o.logger.ErrorContext(ctx, "use_case", attrs...)
		return
	}
	o.logger.InfoContext(ctx, "use_case", attrs...)
}

// OrNoop returns obs, or a NoopObserver when obs is nil.
func OrNoop(obs Observer) Observer {
	if obs == nil {
		return NoopObserver{}
	}
	return obs
}
