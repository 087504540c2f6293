package analytics

import (
	"math"
	"time"

	"opsline/internal/domain"
)

// Burndown returns one point per day from start to end, both included. Point i
// sits at start+i days and counts the items completed at or before that instant.
func Burndown(items []domain.WorkItem, start, end time.Time) []domain.BurndownPoint {
	return burndown(items, start, end, end)
}

// burndown is Burndown with the last point counting completions up to through.
func burndown(items []domain.WorkItem, start, end, through time.Time) []domain.BurndownPoint {
	daysDiff := int(math.Ceil(end.Sub(start).Hours() / 24))
	if daysDiff < 1 {
		daysDiff = 1
	}
	totalEffort := len(items)
	dailyDrop := float64(totalEffort) / float64(daysDiff)

	var completions []time.Time
	for _, it := range items {
		if it.Status == domain.StatusCompleted && it.CompletedAt != nil {
			completions = append(completions, *it.CompletedAt)
		}
	}

	points := make([]domain.BurndownPoint, 0, daysDiff+1)
	for i := 0; i <= daysDiff; i++ {
		date := start.AddDate(0, 0, i)
		cutoff := date
		if i == daysDiff && through.After(cutoff) {
			cutoff = through
		}
		done := 0
		for _, c := range completions {
			if !c.After(cutoff) {
				done++
			}
		}
		ideal := float64(totalEffort) - dailyDrop*float64(i)
		if !finite(ideal) || ideal < 0 {
			ideal = 0
		}
		actual := totalEffort - done
		if actual < 0 {
			actual = 0
		}
		points = append(points, domain.BurndownPoint{
			Day:       i,
			Date:      date.Format("2006-01-02"),
			Ideal:     round2(ideal),
			Actual:    actual,
			Remaining: actual,
		})
	}
	return points
}
