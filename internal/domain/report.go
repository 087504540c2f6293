package domain

import "time"

// ReportFilter is the canonical filter produced by the normalizer.
type ReportFilter struct {
	ProjectID  string       `json:"project_id"`
	EntityID   string       `json:"entity_id"`
	StartDate  *time.Time   `json:"start_date,omitempty"`
	EndDate    *time.Time   `json:"end_date,omitempty"`
	Statuses   []TaskStatus `json:"status,omitempty"`
	Priorities []Priority   `json:"priority,omitempty"`
	AssigneeID string       `json:"assignee_id"`
}

func (f ReportFilter) GlobalScope() bool {
	return f.EntityID == ScopeAll
}

type TeamEfficacyRecord struct {
	AssigneeID         string    `json:"assignee_id"`
	Name               string    `json:"name"`
	Email              string    `json:"email,omitempty"`
	Total              int       `json:"total"`
	Completed          int       `json:"completed"`
	Load               int       `json:"load"`
	OnTime             int       `json:"on_time"`
	TotalDelayDays     int       `json:"total_delay_days"`
	EstimatedHours     float64   `json:"estimated_hours"`
	ActualHours        float64   `json:"actual_hours"`
	Efficacy           int       `json:"efficacy"`
	Punctuality        int       `json:"punctuality"`
	Efficiency         int       `json:"efficiency"`
	EfficiencyDisplay  int       `json:"efficiency_display"`
	OverdueCritical    int       `json:"overdue_critical"`
	HistoricalAvgDelay float64   `json:"historical_avg_delay"`
	PredictedDelayRisk float64   `json:"predicted_delay_risk"`
	RiskLevel          RiskLevel `json:"risk_level"`
}

type BurndownPoint struct {
	Day       int     `json:"day"`
	Date      string  `json:"date"`
	Ideal     float64 `json:"ideal"`
	Actual    int     `json:"actual"`
	Remaining int     `json:"remaining"`
}

type ResourceUtilization struct {
	AssigneeID  string `json:"assignee_id"`
	Name        string `json:"name"`
	Load        int    `json:"load"`
	Utilization int    `json:"utilization"`
	Overloaded  bool   `json:"overloaded"`
}

type ResourceMetrics struct {
	Assignees   int                   `json:"assignees"`
	ActiveLoad  int                   `json:"active_load"`
	AverageLoad float64               `json:"average_load"`
	Overloaded  int                   `json:"overloaded"`
	PerAssignee []ResourceUtilization `json:"per_assignee"`
}

type FinancialMetrics struct {
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	VarianceHours  float64 `json:"variance_hours"`
	Efficiency     int     `json:"efficiency"`
	HourlyRate     float64 `json:"hourly_rate"`
	EstimatedCost  float64 `json:"estimated_cost"`
	ActualCost     float64 `json:"actual_cost"`
}

type TrendPoint struct {
	AssigneeID         string    `json:"assignee_id"`
	Name               string    `json:"name"`
	Efficacy           int       `json:"efficacy"`
	Punctuality        int       `json:"punctuality"`
	PredictedDelayRisk float64   `json:"predicted_delay_risk"`
	RiskLevel          RiskLevel `json:"risk_level"`
	RiskLabel          string    `json:"risk_label"`
}

// ReportSnapshot is assembled fresh per request and never mutated after it is returned.
type ReportSnapshot struct {
	Filter           ReportFilter         `json:"filter"`
	TotalTasks       int                  `json:"total_tasks"`
	CompletedTasks   int                  `json:"completed_tasks"`
	PendingTasks     int                  `json:"pending_tasks"`
	AvgProgress      float64              `json:"avg_progress"`
	TasksByStatus    map[string]int       `json:"tasks_by_status"`
	TasksByPriority  map[string]int       `json:"tasks_by_priority"`
	TeamEfficacy     []TeamEfficacyRecord `json:"team_efficacy"`
	BurndownData     []BurndownPoint      `json:"burndown_data"`
	ResourceMetrics  ResourceMetrics      `json:"resource_metrics"`
	FinancialMetrics FinancialMetrics     `json:"financial_metrics"`
	TrendData        []TrendPoint         `json:"trend_data"`
	ProjectsList     []Project            `json:"projects_list"`
	HiringProcesses  []Process            `json:"hiring_processes"`
	TasksList        []WorkItem           `json:"tasks_list"`
}
