package analytics_test

import (
	"fmt"
	"math/rand"
	"time"

	"opsline/internal/domain"
)

var now = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type itemOpt func(*domain.WorkItem)

func assigned(id string) itemOpt {
	return func(it *domain.WorkItem) {
		it.AssigneeID = ptr(id)
		it.Assignee = &domain.Assignee{ID: id, Name: "Name " + id, Email: id + "@example.com"}
	}
}

func due(t time.Time) itemOpt {
	return func(it *domain.WorkItem) { it.DueDate = ptr(t) }
}

func completedAt(t time.Time) itemOpt {
	return func(it *domain.WorkItem) {
		it.Status = domain.StatusCompleted
		it.CompletedAt = ptr(t)
	}
}

func priority(p domain.Priority) itemOpt {
	return func(it *domain.WorkItem) { it.Priority = p }
}

func hours(est, act float64) itemOpt {
	return func(it *domain.WorkItem) {
		it.EstimatedHours = ptr(est)
		it.ActualHours = ptr(act)
	}
}

var seq int

func item(opts ...itemOpt) domain.WorkItem {
	seq++
	it := domain.WorkItem{
		ID:        fmt.Sprintf("t-%03d", seq),
		ProjectID: "prj-1",
		Title:     "work",
		Status:    domain.StatusPending,
		Priority:  domain.PriorityMedium,
		CreatedAt: date(2024, 3, 1),
		UpdatedAt: date(2024, 3, 1),
	}
	for _, opt := range opts {
		opt(&it)
	}
	return it
}

func repeat(n int, opts ...itemOpt) []domain.WorkItem {
	out := make([]domain.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, item(opts...))
	}
	return out
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
