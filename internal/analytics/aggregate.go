package analytics

import (
	"math"

	"opsline/internal/domain"
)

// Totals are the completion KPIs and histograms of a filtered item set.
type Totals struct {
	Total       int
	Completed   int
	Pending     int
	AvgProgress float64
	ByStatus    map[string]int
	ByPriority  map[string]int
}

var (
	allStatuses   = []domain.TaskStatus{domain.StatusPending, domain.StatusInProgress, domain.StatusReview, domain.StatusCompleted}
	allPriorities = []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityUnspecified}
)

// Aggregate counts items by status and priority. Every known status and
// priority appears in the histograms, zero when absent.
func Aggregate(items []domain.WorkItem) Totals {
	t := Totals{
		ByStatus:   make(map[string]int, len(allStatuses)),
		ByPriority: make(map[string]int, len(allPriorities)),
	}
	for _, s := range allStatuses {
		t.ByStatus[string(s)] = 0
	}
	for _, p := range allPriorities {
		t.ByPriority[string(p)] = 0
	}
	var progressSum float64
	for _, it := range items {
		t.Total++
		if it.Status == domain.StatusCompleted {
			t.Completed++
		}
		progressSum += itemProgress(it)
		t.ByStatus[string(it.Status)]++
		p := it.Priority
		if p == "" {
			p = domain.PriorityUnspecified
		}
		t.ByPriority[string(p)]++
	}
	t.Pending = t.Total - t.Completed
	if t.Total > 0 {
		t.AvgProgress = round1(progressSum / float64(t.Total))
	}
	return t
}

func itemProgress(it domain.WorkItem) float64 {
	if it.Progress != nil && finite(*it.Progress) {
		return math.Min(100, math.Max(0, *it.Progress))
	}
	if it.Status == domain.StatusCompleted {
		return 100
	}
	return 0
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func percent(num, den float64) int {
	if den == 0 {
		return 0
	}
	return int(math.Round(num / den * 100))
}
