package analytics

import (
	"sort"
	"strings"
	"time"

	"opsline/internal/apperr"
	"opsline/internal/domain"
	"opsline/internal/engine/auth"
)

const day = 24 * time.Hour

// RawFilter is the report request as received from a client.
type RawFilter struct {
	ProjectID  string   `json:"project_id,omitempty" doc:"Project id or all"`
	EntityID   string   `json:"entity_id,omitempty" doc:"Entity id or all; defaults to the caller's active entity"`
	StartDate  string   `json:"start_date,omitempty" doc:"Inclusive window start (YYYY-MM-DD)"`
	EndDate    string   `json:"end_date,omitempty" doc:"Inclusive window end (YYYY-MM-DD)"`
	Status     []string `json:"status,omitempty"`
	Priority   []string `json:"priority,omitempty"`
	AssigneeID string   `json:"assignee_id,omitempty" doc:"Assignee id or all"`
}

// RequestContext is the caller's identity and scope, resolved by the calling
// layer and passed by value into every report request.
type RequestContext struct {
	ActorID        string
	ActiveEntityID string
	// Grants maps an entity id, or "all", to the permissions held there.
	Grants map[string][]string
}

// Can reports whether perm is held on entityID directly or globally.
func (rc RequestContext) Can(entityID, perm string) bool {
	for _, scope := range []string{entityID, domain.ScopeAll} {
		for _, p := range rc.Grants[scope] {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// NormalizeFilter validates raw and returns the canonical filter. Status and
// priority sets are deduplicated and sorted so equal requests normalize equally.
func NormalizeFilter(raw RawFilter, rc RequestContext) (domain.ReportFilter, error) {
	var f domain.ReportFilter
	var err error
	if f.ProjectID, err = normalizeScope("project_id", raw.ProjectID, domain.ScopeAll); err != nil {
		return f, err
	}
	entityDefault := domain.ScopeAll
	if strings.TrimSpace(rc.ActiveEntityID) != "" {
		entityDefault = strings.TrimSpace(rc.ActiveEntityID)
	}
	if f.EntityID, err = normalizeScope("entity_id", raw.EntityID, entityDefault); err != nil {
		return f, err
	}
	if f.AssigneeID, err = normalizeScope("assignee_id", raw.AssigneeID, domain.ScopeAll); err != nil {
		return f, err
	}
	if f.StartDate, err = parseFilterDate("start_date", raw.StartDate); err != nil {
		return f, err
	}
	if f.EndDate, err = parseFilterDate("end_date", raw.EndDate); err != nil {
		return f, err
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return f, apperr.WithMetadata(apperr.CodeInvalidFilter, "start_date must not be after end_date", map[string]string{
			"start_date": raw.StartDate,
			"end_date":   raw.EndDate,
		})
	}
	seenStatus := map[domain.TaskStatus]bool{}
	for _, s := range raw.Status {
		st, err := domain.ParseStatus(s)
		if err != nil {
			return f, apperr.WithMetadata(apperr.CodeInvalidFilter, err.Error(), map[string]string{"field": "status"})
		}
		if !seenStatus[st] {
			seenStatus[st] = true
			f.Statuses = append(f.Statuses, st)
		}
	}
	sort.Slice(f.Statuses, func(i, j int) bool { return f.Statuses[i] < f.Statuses[j] })
	seenPriority := map[domain.Priority]bool{}
	for _, p := range raw.Priority {
		pr, err := domain.ParsePriority(p)
		if err != nil {
			return f, apperr.WithMetadata(apperr.CodeInvalidFilter, err.Error(), map[string]string{"field": "priority"})
		}
		if !seenPriority[pr] {
			seenPriority[pr] = true
			f.Priorities = append(f.Priorities, pr)
		}
	}
	sort.Slice(f.Priorities, func(i, j int) bool { return f.Priorities[i] < f.Priorities[j] })
	return f, nil
}

// Authorize rejects the filter when the caller may not read its entity scope.
func Authorize(rc RequestContext, f domain.ReportFilter) error {
	if f.GlobalScope() {
		if !rc.Can(domain.ScopeAll, auth.PermReportGlobal) {
			return apperr.WithMetadata(apperr.CodeUnauthorized, "global reports require "+auth.PermReportGlobal, map[string]string{
				"permission": auth.PermReportGlobal,
			})
		}
		return nil
	}
	if !rc.Can(f.EntityID, auth.PermReportRead) && !rc.Can(domain.ScopeAll, auth.PermReportGlobal) {
		return apperr.WithMetadata(apperr.CodeUnauthorized, "report access denied for entity "+f.EntityID, map[string]string{
			"permission": auth.PermReportRead,
			"entity_id":  f.EntityID,
		})
	}
	return nil
}

// BurndownWindow is the span of a burndown series. Points sit at Start+i days
// up to End; the last point counts completions up to Through.
type BurndownWindow struct {
	Start   time.Time
	End     time.Time
	Through time.Time
}

// Window returns the burndown window for f. Without bounds it is the days
// before now, ending at now. An explicit end_date covers that whole day. A
// start_date alone runs to the current UTC day and counts completions up to now.
func Window(f domain.ReportFilter, now time.Time, days int) BurndownWindow {
	now = now.UTC()
	w := BurndownWindow{End: now, Through: now}
	switch {
	case f.EndDate != nil:
		w.End = *f.EndDate
		w.Through = f.EndDate.Add(day - time.Nanosecond)
	case f.StartDate != nil:
		w.End = now.Truncate(day)
	}
	w.Start = w.End.AddDate(0, 0, -days)
	if f.StartDate != nil {
		w.Start = *f.StartDate
	}
	if w.Start.After(w.End) {
		w.End = w.Start
	}
	if w.Through.Before(w.End) {
		w.Through = w.End
	}
	return w
}

// Burndown builds the series for w.
func (w BurndownWindow) Burndown(items []domain.WorkItem) []domain.BurndownPoint {
	return burndown(items, w.Start, w.End, w.Through)
}

func normalizeScope(field, v, fallback string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback, nil
	}
	if strings.EqualFold(v, domain.ScopeAll) {
		return domain.ScopeAll, nil
	}
	if !domain.ValidID(v) {
		return "", apperr.WithMetadata(apperr.CodeInvalidFilter, "malformed "+field, map[string]string{"field": field, "value": v})
	}
	return v, nil
}

func parseFilterDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		ts, rfcErr := time.Parse(time.RFC3339, v)
		if rfcErr != nil {
			return nil, apperr.WithMetadata(apperr.CodeInvalidFilter, "malformed "+field, map[string]string{"field": field, "value": v})
		}
		t = ts.UTC().Truncate(day)
	}
	return &t, nil
}
