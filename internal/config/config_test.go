package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 14, cfg.Report.DefaultWindowDays)
	assert.Equal(t, 50, cfg.Report.TasksListLimit)
	assert.Equal(t, 5, cfg.Report.LoadThreshold)
	assert.InDelta(t, 0.1, cfg.Report.LoadStep, 1e-9)
	assert.Contains(t, cfg.PermissionsForRoles([]string{"admin"}), "report.global")
}

func TestFromYAMLKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := FromYAML([]byte("report:\n  default_window_days: 7\n  tasks_list_limit: 20\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Report.DefaultWindowDays)
	assert.Equal(t, 20, cfg.Report.TasksListLimit)
	assert.InDelta(t, 3.0, cfg.RiskLevels.High, 1e-9)
}

func TestValidateRejectsUnorderedRiskLevels(t *testing.T) {
	_, err := FromYAML([]byte("risk_levels:\n  medium: 4\n  high: 2\n  critical: 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk_levels")
}

func TestValidateBoundsTasksListLimit(t *testing.T) {
	_, err := FromYAML([]byte("report:\n  tasks_list_limit: 51\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tasks_list_limit")

	cfg, err := FromYAML([]byte("report:\n  tasks_list_limit: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, MaxTasksListLimit, cfg.Report.TasksListLimit)
}

func TestValidateRejectsEmptyWebhookURL(t *testing.T) {
	_, err := FromYAML([]byte("webhooks:\n  - id: ops\n"))
	require.Error(t, err)
}

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("OPSLINE_JWT_SECRET", "s3cret")
	t.Setenv("OPSLINE_OTEL_ENABLED", "false")
	e, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", e.JWTSecret)
	assert.Equal(t, "/v0", e.BasePath)
	assert.False(t, e.OTelEnabled)
}
