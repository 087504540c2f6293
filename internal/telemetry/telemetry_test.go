package telemetry_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsline/internal/config"
	"opsline/internal/telemetry"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "test-service", config.Env{OTelEnabled: true})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupNoopWhenDisabled(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "test-service", config.Env{OTelEndpoint: "http://localhost:4318"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address; nothing is exported because no spans are recorded.
	shutdown, err := telemetry.Setup(context.Background(), "test-service", config.Env{OTelEnabled: true, OTelEndpoint: "http://192.0.2.1:4318"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestLogObserverWritesUseCaseLine(t *testing.T) {
	var buf bytes.Buffer
	logger, err := telemetry.NewLogger(&buf, "debug")
	require.NoError(t, err)
	obs := telemetry.NewLogObserver(logger)

	obs.ObserveUseCase(context.Background(), telemetry.UseCaseEvent{
		Name:     "report.generate",
		Duration: 12 * time.Millisecond,
		Success:  true,
		Fields:   map[string]any{"total_tasks": 3},
	})
	obs.ObserveUseCase(context.Background(), telemetry.UseCaseEvent{Name: "phase.toggle", Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "use_case=report.generate")
	assert.Contains(t, out, "duration_ms=12")
	assert.Contains(t, out, "total_tasks=3")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "error=boom")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := telemetry.NewLogger(&bytes.Buffer{}, "verbose")
	assert.Error(t, err)
	assert.IsType(t, telemetry.NoopObserver{}, telemetry.NewLogObserver(nil))
	assert.IsType(t, telemetry.NoopObserver{}, telemetry.OrNoop(nil))
}
