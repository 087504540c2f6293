package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsline/internal/analytics"
	"opsline/internal/apperr"
	"opsline/internal/domain"
)

func TestNormalizeFilterDefaults(t *testing.T) {
	f, err := analytics.NormalizeFilter(analytics.RawFilter{}, analytics.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, domain.ScopeAll, f.ProjectID)
	assert.Equal(t, domain.ScopeAll, f.EntityID)
	assert.Equal(t, domain.ScopeAll, f.AssigneeID)
	assert.Nil(t, f.StartDate)
	assert.Nil(t, f.EndDate)

	f, err = analytics.NormalizeFilter(analytics.RawFilter{}, analytics.RequestContext{ActiveEntityID: "ent-7"})
	require.NoError(t, err)
	assert.Equal(t, "ent-7", f.EntityID, "active entity is the default scope")

	f, err = analytics.NormalizeFilter(analytics.RawFilter{EntityID: "ALL"}, analytics.RequestContext{ActiveEntityID: "ent-7"})
	require.NoError(t, err)
	assert.Equal(t, domain.ScopeAll, f.EntityID)
}

func TestNormalizeFilterCanonicalSets(t *testing.T) {
	f, err := analytics.NormalizeFilter(analytics.RawFilter{
		Status:   []string{"Completado", "pending", "completed", "En progreso"},
		Priority: []string{"Alta", "high", ""},
	}, analytics.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, []domain.TaskStatus{domain.StatusCompleted, domain.StatusInProgress, domain.StatusPending}, f.Statuses)
	assert.Equal(t, []domain.Priority{domain.PriorityHigh, domain.PriorityUnspecified}, f.Priorities)
}

func TestNormalizeFilterRejects(t *testing.T) {
	cases := map[string]analytics.RawFilter{
		"inverted window":   {StartDate: "2024-03-10", EndDate: "2024-03-01"},
		"malformed date":    {StartDate: "10/03/2024"},
		"malformed project": {ProjectID: "prj 1; drop"},
		"malformed entity":  {EntityID: "../etc"},
		"unknown status":    {Status: []string{"blocked"}},
		"unknown priority":  {Priority: []string{"urgent"}},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := analytics.NormalizeFilter(raw, analytics.RequestContext{})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrInvalidFilter)
		})
	}
}

func TestNormalizeFilterSameDayWindow(t *testing.T) {
	f, err := analytics.NormalizeFilter(analytics.RawFilter{StartDate: "2024-03-01", EndDate: "2024-03-01T18:00:00Z"}, analytics.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 1), *f.StartDate)
	assert.Equal(t, date(2024, 3, 1), *f.EndDate)
}

func TestAuthorize(t *testing.T) {
	reader := analytics.RequestContext{ActorID: "ana", Grants: map[string][]string{"ent-a": {"report.read"}}}
	global := analytics.RequestContext{ActorID: "root", Grants: map[string][]string{domain.ScopeAll: {"report.global", "report.read"}}}
	globalReader := analytics.RequestContext{ActorID: "bob", Grants: map[string][]string{domain.ScopeAll: {"report.read"}}}

	all := domain.ReportFilter{EntityID: domain.ScopeAll}
	entA := domain.ReportFilter{EntityID: "ent-a"}
	entB := domain.ReportFilter{EntityID: "ent-b"}

	assert.ErrorIs(t, analytics.Authorize(reader, all), apperr.ErrUnauthorized)
	assert.NoError(t, analytics.Authorize(reader, entA))
	assert.ErrorIs(t, analytics.Authorize(reader, entB), apperr.ErrUnauthorized)
	assert.NoError(t, analytics.Authorize(global, all))
	assert.NoError(t, analytics.Authorize(global, entB))
	assert.NoError(t, analytics.Authorize(globalReader, entB))
	assert.ErrorIs(t, analytics.Authorize(globalReader, all), apperr.ErrUnauthorized)
	assert.ErrorIs(t, analytics.Authorize(analytics.RequestContext{}, entA), apperr.ErrUnauthorized)
}

func TestWindowDefaults(t *testing.T) {
	w := analytics.Window(domain.ReportFilter{}, now, 14)
	assert.Equal(t, now, w.End)
	assert.Equal(t, now, w.Through)
	assert.Equal(t, now.AddDate(0, 0, -14), w.Start)

	from := date(2024, 3, 4)
	w = analytics.Window(domain.ReportFilter{StartDate: &from}, now, 14)
	assert.Equal(t, from, w.Start)
	assert.Equal(t, date(2024, 3, 10), w.End)
	assert.Equal(t, now, w.Through)

	to := date(2024, 1, 31)
	w = analytics.Window(domain.ReportFilter{EndDate: &to}, now, 14)
	assert.Equal(t, date(2024, 1, 17), w.Start)
	assert.Equal(t, to, w.End)
	assert.Equal(t, date(2024, 2, 1).Add(-time.Nanosecond), w.Through)

	future := date(2024, 4, 1)
	w = analytics.Window(domain.ReportFilter{StartDate: &future}, now, 14)
	assert.Equal(t, future, w.End)
	assert.Equal(t, future, w.Through)
}
