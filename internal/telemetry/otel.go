package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"opsline/internal/config"
)

// InstrumentationName names the tracer used by report and phase spans.
const InstrumentationName = "opsline"

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when OPSLINE_OTEL_ENDPOINT is empty or
// OPSLINE_OTEL_ENABLED is false, Setup returns a no-op shutdown function and
// no global provider is registered.
func Setup(ctx context.Context, serviceName string, env config.Env) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if !env.OTelEnabled || env.OTelEndpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(env.OTelEndpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns the opsline tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
