package analytics

import (
	"sort"

	"opsline/internal/domain"
)

// ResourceView summarizes active load per assignee against the load threshold.
func ResourceView(team []domain.TeamEfficacyRecord, threshold int) domain.ResourceMetrics {
	m := domain.ResourceMetrics{
		Assignees:   len(team),
		PerAssignee: make([]domain.ResourceUtilization, 0, len(team)),
	}
	for _, r := range team {
		m.ActiveLoad += r.Load
		u := domain.ResourceUtilization{
			AssigneeID: r.AssigneeID,
			Name:       r.Name,
			Load:       r.Load,
			Overloaded: r.Load > threshold,
		}
		switch {
		case threshold > 0:
			u.Utilization = percent(float64(r.Load), float64(threshold))
		case r.Load > 0:
			u.Utilization = 100
		}
		if u.Overloaded {
			m.Overloaded++
		}
		m.PerAssignee = append(m.PerAssignee, u)
	}
	if len(team) > 0 {
		m.AverageLoad = round1(float64(m.ActiveLoad) / float64(len(team)))
	}
	return m
}

// FinancialView totals completed-item hours and prices them at hourlyRate.
func FinancialView(team []domain.TeamEfficacyRecord, hourlyRate float64) domain.FinancialMetrics {
	var est, act float64
	for _, r := range team {
		est += r.EstimatedHours
		act += r.ActualHours
	}
	m := domain.FinancialMetrics{
		EstimatedHours: round2(est),
		ActualHours:    round2(act),
		VarianceHours:  round2(act - est),
		Efficiency:     100,
		HourlyRate:     hourlyRate,
		EstimatedCost:  round2(est * hourlyRate),
		ActualCost:     round2(act * hourlyRate),
	}
	if act > 0 {
		m.Efficiency = percent(est, act)
	}
	return m
}

// TrendView orders assignees by predicted delay risk, highest first.
func TrendView(team []domain.TeamEfficacyRecord) []domain.TrendPoint {
	out := make([]domain.TrendPoint, 0, len(team))
	for _, r := range team {
		out = append(out, domain.TrendPoint{
			AssigneeID:         r.AssigneeID,
			Name:               r.Name,
			Efficacy:           r.Efficacy,
			Punctuality:        r.Punctuality,
			PredictedDelayRisk: r.PredictedDelayRisk,
			RiskLevel:          r.RiskLevel,
			RiskLabel:          r.RiskLevel.Label(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PredictedDelayRisk != out[j].PredictedDelayRisk {
			return out[i].PredictedDelayRisk > out[j].PredictedDelayRisk
		}
		return out[i].AssigneeID < out[j].AssigneeID
	})
	return out
}
