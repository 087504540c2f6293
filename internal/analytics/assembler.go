package analytics

import (
	"opsline/internal/config"
	"opsline/internal/domain"
)

// Parts are the computed pieces combined into a snapshot.
type Parts struct {
	Filter        domain.ReportFilter
	Totals        Totals
	Team          []domain.TeamEfficacyRecord
	Burndown      []domain.BurndownPoint
	Projects      []domain.Project
	Processes     []domain.Process
	Items         []domain.WorkItem
	TasksLimit    int
	LoadThreshold int
	HourlyRate    float64
}

// Assemble builds a snapshot that shares no memory with its inputs. At most
// TasksLimit items are copied into tasks_list; a limit outside
// 1..config.MaxTasksListLimit uses the maximum.
func Assemble(p Parts) domain.ReportSnapshot {
	limit := p.TasksLimit
	if limit <= 0 || limit > config.MaxTasksListLimit {
		limit = config.MaxTasksListLimit
	}
	items := p.Items
	if len(items) > limit {
		items = items[:limit]
	}
	snap := domain.ReportSnapshot{
		Filter:           cloneFilter(p.Filter),
		TotalTasks:       p.Totals.Total,
		CompletedTasks:   p.Totals.Completed,
		PendingTasks:     p.Totals.Pending,
		AvgProgress:      p.Totals.AvgProgress,
		TasksByStatus:    cloneCounts(p.Totals.ByStatus),
		TasksByPriority:  cloneCounts(p.Totals.ByPriority),
		TeamEfficacy:     append(make([]domain.TeamEfficacyRecord, 0, len(p.Team)), p.Team...),
		BurndownData:     append(make([]domain.BurndownPoint, 0, len(p.Burndown)), p.Burndown...),
		ResourceMetrics:  ResourceView(p.Team, p.LoadThreshold),
		FinancialMetrics: FinancialView(p.Team, p.HourlyRate),
		TrendData:        TrendView(p.Team),
		ProjectsList:     append(make([]domain.Project, 0, len(p.Projects)), p.Projects...),
		HiringProcesses:  append(make([]domain.Process, 0, len(p.Processes)), p.Processes...),
		TasksList:        make([]domain.WorkItem, 0, len(items)),
	}
	for _, it := range items {
		snap.TasksList = append(snap.TasksList, cloneWorkItem(it))
	}
	return snap
}

// Clone returns a deep copy of s.
func Clone(s domain.ReportSnapshot) domain.ReportSnapshot {
	out := s
	out.Filter = cloneFilter(s.Filter)
	out.TasksByStatus = cloneCounts(s.TasksByStatus)
	out.TasksByPriority = cloneCounts(s.TasksByPriority)
	out.TeamEfficacy = cloneSlice(s.TeamEfficacy)
	out.BurndownData = cloneSlice(s.BurndownData)
	out.ResourceMetrics.PerAssignee = cloneSlice(s.ResourceMetrics.PerAssignee)
	out.TrendData = cloneSlice(s.TrendData)
	out.ProjectsList = cloneSlice(s.ProjectsList)
	out.HiringProcesses = cloneSlice(s.HiringProcesses)
	out.TasksList = nil
	if s.TasksList != nil {
		out.TasksList = make([]domain.WorkItem, 0, len(s.TasksList))
		for _, it := range s.TasksList {
			out.TasksList = append(out.TasksList, cloneWorkItem(it))
		}
	}
	return out
}

func cloneFilter(f domain.ReportFilter) domain.ReportFilter {
	out := f
	out.StartDate = clonePtr(f.StartDate)
	out.EndDate = clonePtr(f.EndDate)
	out.Statuses = cloneSlice(f.Statuses)
	out.Priorities = cloneSlice(f.Priorities)
	return out
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneWorkItem(it domain.WorkItem) domain.WorkItem {
	out := it
	out.EntityID = clonePtr(it.EntityID)
	out.DueDate = clonePtr(it.DueDate)
	out.CompletedAt = clonePtr(it.CompletedAt)
	out.AssigneeID = clonePtr(it.AssigneeID)
	out.Assignee = clonePtr(it.Assignee)
	out.EstimatedHours = clonePtr(it.EstimatedHours)
	out.ActualHours = clonePtr(it.ActualHours)
	out.Progress = clonePtr(it.Progress)
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
