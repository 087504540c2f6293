package analytics_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"opsline/internal/analytics"
	"opsline/internal/domain"
)

func TestAggregate(t *testing.T) {
	items := []domain.WorkItem{
		item(completedAt(date(2024, 3, 2)), priority(domain.PriorityHigh)),
		item(priority("")),
		item(),
	}
	items[2].Status = domain.StatusReview
	items[2].Progress = ptr(50.0)

	got := analytics.Aggregate(items)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Completed)
	assert.Equal(t, 2, got.Pending)
	assert.Equal(t, 50.0, got.AvgProgress)
	assert.Equal(t, map[string]int{"pending": 1, "in_progress": 0, "review": 1, "completed": 1}, got.ByStatus)
	assert.Equal(t, map[string]int{"low": 0, "medium": 1, "high": 1, "unspecified": 1}, got.ByPriority)
}

func TestAggregateClampsStoredProgress(t *testing.T) {
	items := []domain.WorkItem{item(), item()}
	items[0].Progress = ptr(250.0)
	items[1].Progress = ptr(-40.0)
	assert.Equal(t, 50.0, analytics.Aggregate(items).AvgProgress)
}

func TestAggregateEmpty(t *testing.T) {
	got := analytics.Aggregate(nil)
	assert.Zero(t, got.Total)
	assert.Zero(t, got.AvgProgress)
	assert.Len(t, got.ByStatus, 4)
}

func TestAggregateCountsBalance(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 100; round++ {
		got := analytics.Aggregate(randomItems(rng, rng.Intn(50)))
		assert.Equal(t, got.Total, got.Pending+got.Completed)
		sum := 0
		for _, n := range got.ByStatus {
			sum += n
		}
		assert.Equal(t, got.Total, sum)
		assert.GreaterOrEqual(t, got.AvgProgress, 0.0)
		assert.LessOrEqual(t, got.AvgProgress, 100.0)
	}
}
