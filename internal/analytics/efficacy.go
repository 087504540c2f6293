package analytics

import (
	"math"
	"sort"
	"time"

	"opsline/internal/config"
	"opsline/internal/domain"
)

// ScoringParams tune the delay-risk projection.
type ScoringParams struct {
	// LoadThreshold is the active load above which risk is amplified.
	LoadThreshold int
	// LoadStep is the amplification added per item above the threshold.
	LoadStep float64
	// RiskLevels classify the projected delay.
	RiskLevels config.RiskLevelConfig
}

// DefaultScoringParams amplifies by 0.1 per active item above 5.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		LoadThreshold: 5,
		LoadStep:      0.1,
		RiskLevels:    config.RiskLevelConfig{Medium: 1, High: 3, Critical: 5},
	}
}

// ScoringParamsFromConfig reads the report and risk_levels sections.
func ScoringParamsFromConfig(cfg *config.Config) ScoringParams {
	if cfg == nil {
		return DefaultScoringParams()
	}
	return ScoringParams{
		LoadThreshold: cfg.Report.LoadThreshold,
		LoadStep:      cfg.Report.LoadStep,
		RiskLevels:    cfg.RiskLevels,
	}
}

type assigneeTally struct {
	record     domain.TeamEfficacyRecord
	totalDelay int
	est, act   float64
}

// ScoreTeam computes one record per assignee, ordered by assignee id. Items
// without an assignee are skipped.
func ScoreTeam(items []domain.WorkItem, now time.Time, params ScoringParams) []domain.TeamEfficacyRecord {
	today := now.UTC().Format("2006-01-02")
	tallies := map[string]*assigneeTally{}
	for _, it := range items {
		if it.AssigneeID == nil || *it.AssigneeID == "" {
			continue
		}
		id := *it.AssigneeID
		tl, ok := tallies[id]
		if !ok {
			tl = &assigneeTally{record: domain.TeamEfficacyRecord{AssigneeID: id, Name: id}}
			if it.Assignee != nil {
				if it.Assignee.Name != "" {
					tl.record.Name = it.Assignee.Name
				}
				tl.record.Email = it.Assignee.Email
			}
			tallies[id] = tl
		}
		r := &tl.record
		r.Total++
		if it.Status != domain.StatusCompleted {
			r.Load++
			if it.Priority == domain.PriorityHigh && it.DueDate != nil && it.DueDate.UTC().Format("2006-01-02") < today {
				r.OverdueCritical++
			}
			continue
		}
		r.Completed++
		if it.DueDate != nil && it.CompletedAt != nil {
			if !it.CompletedAt.After(*it.DueDate) {
				r.OnTime++
			} else {
				tl.totalDelay += int(math.Ceil(it.CompletedAt.Sub(*it.DueDate).Hours() / 24))
			}
		}
		if it.EstimatedHours != nil && finite(*it.EstimatedHours) {
			tl.est += *it.EstimatedHours
		}
		if it.ActualHours != nil && finite(*it.ActualHours) {
			tl.act += *it.ActualHours
		}
	}

	out := make([]domain.TeamEfficacyRecord, 0, len(tallies))
	for _, tl := range tallies {
		out = append(out, finishRecord(tl, params))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssigneeID < out[j].AssigneeID })
	return out
}

func finishRecord(tl *assigneeTally, params ScoringParams) domain.TeamEfficacyRecord {
	r := tl.record
	r.TotalDelayDays = tl.totalDelay
	r.EstimatedHours = round2(tl.est)
	r.ActualHours = round2(tl.act)
	r.Efficacy = percent(float64(r.Completed), float64(r.Total))
	r.Punctuality = percent(float64(r.OnTime), float64(r.Completed))
	r.Efficiency = 100
	if tl.act > 0 {
		r.Efficiency = percent(tl.est, tl.act)
	}
	r.EfficiencyDisplay = clampPercent(r.Efficiency)
	if r.Completed > 0 {
		r.HistoricalAvgDelay = round1(float64(tl.totalDelay) / float64(r.Completed))
	}
	r.PredictedDelayRisk = round1(r.HistoricalAvgDelay * RiskFactor(r.Load, params))
	r.RiskLevel = ClassifyRisk(r.PredictedDelayRisk, r.OverdueCritical, params.RiskLevels)
	return r
}

// RiskFactor is 1 plus LoadStep for every active item above LoadThreshold.
func RiskFactor(load int, params ScoringParams) float64 {
	over := load - params.LoadThreshold
	if over < 0 || params.LoadStep <= 0 {
		return 1
	}
	return 1 + float64(over)*params.LoadStep
}

// ClassifyRisk maps a predicted delay onto the configured levels. Any overdue
// high-priority item raises the level to at least high.
func ClassifyRisk(predicted float64, overdueCritical int, levels config.RiskLevelConfig) domain.RiskLevel {
	level := domain.RiskLow
	switch {
	case predicted >= levels.Critical:
		level = domain.RiskCritical
	case predicted >= levels.High:
		level = domain.RiskHigh
	case predicted >= levels.Medium:
		level = domain.RiskMedium
	}
	if overdueCritical > 0 && level.Rank() < domain.RiskHigh.Rank() {
		level = domain.RiskHigh
	}
	return level
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
