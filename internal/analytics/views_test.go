package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsline/internal/analytics"
	"opsline/internal/domain"
)

func viewTeam() []domain.TeamEfficacyRecord {
	return []domain.TeamEfficacyRecord{
		{AssigneeID: "a", Name: "Ana", Load: 2, EstimatedHours: 10, ActualHours: 8, PredictedDelayRisk: 0.5, RiskLevel: domain.RiskLow},
		{AssigneeID: "b", Name: "Beto", Load: 8, EstimatedHours: 6, ActualHours: 12, PredictedDelayRisk: 4.2, RiskLevel: domain.RiskHigh},
		{AssigneeID: "c", Name: "Caro", Load: 0, PredictedDelayRisk: 0.5, RiskLevel: domain.RiskLow},
	}
}

func TestResourceView(t *testing.T) {
	m := analytics.ResourceView(viewTeam(), 5)
	assert.Equal(t, 3, m.Assignees)
	assert.Equal(t, 10, m.ActiveLoad)
	assert.Equal(t, 3.3, m.AverageLoad)
	assert.Equal(t, 1, m.Overloaded)
	require.Len(t, m.PerAssignee, 3)
	assert.Equal(t, 40, m.PerAssignee[0].Utilization)
	assert.Equal(t, 160, m.PerAssignee[1].Utilization)
	assert.True(t, m.PerAssignee[1].Overloaded)

	empty := analytics.ResourceView(nil, 5)
	assert.Zero(t, empty.AverageLoad)
	assert.NotNil(t, empty.PerAssignee)
}

func TestFinancialView(t *testing.T) {
	m := analytics.FinancialView(viewTeam(), 50)
	assert.Equal(t, 16.0, m.EstimatedHours)
	assert.Equal(t, 20.0, m.ActualHours)
	assert.Equal(t, 4.0, m.VarianceHours)
	assert.Equal(t, 80, m.Efficiency)
	assert.Equal(t, 800.0, m.EstimatedCost)
	assert.Equal(t, 1000.0, m.ActualCost)

	idle := analytics.FinancialView(nil, 50)
	assert.Equal(t, 100, idle.Efficiency)
}

func TestTrendViewOrdersByRisk(t *testing.T) {
	trend := analytics.TrendView(viewTeam())
	require.Len(t, trend, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{trend[0].AssigneeID, trend[1].AssigneeID, trend[2].AssigneeID})
	assert.Equal(t, "Alto", trend[0].RiskLabel)
}
