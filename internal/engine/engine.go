package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"opsline/internal/apperr"
	"opsline/internal/config"
	"opsline/internal/domain"
	"opsline/internal/engine/auth"
	"opsline/internal/events"
	"opsline/internal/repo"
)

// Engine owns every write to the record store outside the phase checklist.
// Each mutation runs in one transaction together with its event.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{Now: time.Now},
		Auth:   auth.Service{Repo: r, Config: cfg},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) stamp() string {
	return e.now().Format(time.RFC3339)
}

// InitWorkspace makes actorID a global admin when nobody holds a role yet.
// It reports whether the grant was made.
func (e Engine) InitWorkspace(ctx context.Context, actorID string) (bool, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return false, apperr.New(apperr.CodeValidation, "actor_id required")
	}
	grants, err := e.Repo.ListRoleGrants(ctx, "")
	if err != nil {
		return false, err
	}
	if len(grants) > 0 {
		return false, nil
	}
	g := domain.RoleGrant{EntityID: domain.ScopeAll, ActorID: actorID, RoleID: "admin"}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Auth.EnsureActor(ctx, tx, actorID, e.stamp()); err != nil {
			return fmt.Errorf("ensure actor: %w", err)
		}
		if err := e.Repo.GrantRole(ctx, tx, g); err != nil {
			return fmt.Errorf("grant role: %w", err)
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.RoleGranted,
			EntityID:   g.EntityID,
			TargetKind: "actor",
			TargetID:   actorID,
			ActorID:    actorID,
			Payload:    events.EventPayload{"role": g.RoleID, "bootstrap": true},
		})
	})
	return err == nil, err
}

type EntityCreateOptions struct {
	ID      string
	Name    string
	ActorID string
}

func (e Engine) CreateEntity(ctx context.Context, opts EntityCreateOptions) (domain.Entity, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Entity{}, apperr.New(apperr.CodeValidation, "name is required")
	}
	id, err := e.recordID(opts.ID, "entity|"+name)
	if err != nil {
		return domain.Entity{}, err
	}
	ent := domain.Entity{ID: id, Name: name, CreatedAt: e.stamp()}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertEntityTx(ctx, tx, ent); err != nil {
			return conflictOr(err, "entity", id)
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.EntityCreated,
			EntityID:   id,
			TargetKind: "entity",
			TargetID:   id,
			ActorID:    opts.ActorID,
			Payload:    events.EventPayload{"name": name},
		})
	})
	if err != nil {
		return domain.Entity{}, err
	}
	return ent, nil
}

type ProjectCreateOptions struct {
	ID          string
	EntityID    string
	Name        string
	Description string
	ActorID     string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Project{}, apperr.New(apperr.CodeValidation, "name is required")
	}
	if opts.EntityID == "" {
		return domain.Project{}, apperr.New(apperr.CodeValidation, "entity is required")
	}
	if _, err := e.Repo.GetEntity(ctx, opts.EntityID); err != nil {
		return domain.Project{}, notFoundOr(err, "entity", opts.EntityID)
	}
	id, err := e.recordID(opts.ID, "project|"+opts.EntityID+"|"+name)
	if err != nil {
		return domain.Project{}, err
	}
	p := domain.Project{
		ID:          id,
		EntityID:    opts.EntityID,
		Name:        name,
		Status:      "active",
		Description: opts.Description,
		CreatedAt:   e.stamp(),
	}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertProjectTx(ctx, tx, p); err != nil {
			return conflictOr(err, "project", id)
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.ProjectCreated,
			EntityID:   p.EntityID,
			TargetKind: "project",
			TargetID:   id,
			ActorID:    opts.ActorID,
			Payload:    events.EventPayload{"name": name, "status": p.Status},
		})
	})
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

type ProjectUpdateOptions struct {
	ID          string
	Status      string
	Description *string
	ActorID     string
}

var projectStatuses = map[string]bool{"active": true, "paused": true, "archived": true}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	status := strings.ToLower(strings.TrimSpace(opts.Status))
	if status != "" && !projectStatuses[status] {
		return domain.Project{}, apperr.WithMetadata(apperr.CodeValidation, fmt.Sprintf("invalid project status %q", opts.Status),
			map[string]string{"status": opts.Status})
	}
	existing, err := e.Repo.GetProject(ctx, opts.ID)
	if err != nil {
		return domain.Project{}, notFoundOr(err, "project", opts.ID)
	}
	payload := events.EventPayload{}
	if status != "" {
		payload["status"] = status
	}
	if opts.Description != nil {
		payload["description"] = *opts.Description
	}
	if len(payload) == 0 {
		return existing, nil
	}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateProjectTx(ctx, tx, opts.ID, status, opts.Description); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.ProjectUpdated,
			EntityID:   existing.EntityID,
			TargetKind: "project",
			TargetID:   opts.ID,
			ActorID:    opts.ActorID,
			Payload:    payload,
		})
	})
	if err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, opts.ID)
}

type AssigneeCreateOptions struct {
	ID      string
	Name    string
	Email   string
	ActorID string
}

func (e Engine) CreateAssignee(ctx context.Context, opts AssigneeCreateOptions) (domain.Assignee, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Assignee{}, apperr.New(apperr.CodeValidation, "name is required")
	}
	id, err := e.recordID(opts.ID, "assignee|"+name+"|"+opts.Email)
	if err != nil {
		return domain.Assignee{}, err
	}
	a := domain.Assignee{ID: id, Name: name, Email: strings.TrimSpace(opts.Email), CreatedAt: e.stamp()}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAssigneeTx(ctx, tx, a); err != nil {
			return conflictOr(err, "assignee", id)
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.AssigneeCreated,
			TargetKind: "assignee",
			TargetID:   id,
			ActorID:    opts.ActorID,
			Payload:    events.EventPayload{"name": name},
		})
	})
	if err != nil {
		return domain.Assignee{}, err
	}
	return a, nil
}

// TaskCreateOptions are parameters for creating a work item. Labels are
// parsed leniently; DueDate accepts YYYY-MM-DD or RFC3339.
type TaskCreateOptions struct {
	ID             string
	ProjectID      string
	Title          string
	Status         string
	Priority       string
	DueDate        string
	AssigneeID     string
	EstimatedHours *float64
	ActualHours    *float64
	Progress       *float64
	ActorID        string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.WorkItem, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.WorkItem{}, apperr.New(apperr.CodeValidation, "title is required")
	}
	if opts.ProjectID == "" {
		return domain.WorkItem{}, apperr.New(apperr.CodeValidation, "project is required")
	}
	project, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.WorkItem{}, notFoundOr(err, "project", opts.ProjectID)
	}
	if opts.AssigneeID != "" {
		if _, err := e.Repo.GetAssignee(ctx, opts.AssigneeID); err != nil {
			return domain.WorkItem{}, notFoundOr(err, "assignee", opts.AssigneeID)
		}
	}
	status := domain.StatusPending
	if strings.TrimSpace(opts.Status) != "" {
		if status, err = domain.ParseStatus(opts.Status); err != nil {
			return domain.WorkItem{}, apperr.Wrap(apperr.CodeValidation, "invalid status", err)
		}
	}
	priority, err := domain.ParsePriority(opts.Priority)
	if err != nil {
		return domain.WorkItem{}, apperr.Wrap(apperr.CodeValidation, "invalid priority", err)
	}
	if err := validateMeasures(opts.EstimatedHours, opts.ActualHours, opts.Progress); err != nil {
		return domain.WorkItem{}, err
	}
	now := e.now()
	id, err := e.recordID(opts.ID, "task|"+opts.ProjectID+"|"+title+"|"+now.Format(time.RFC3339Nano))
	if err != nil {
		return domain.WorkItem{}, err
	}
	t := domain.WorkItem{
		ID:             id,
		ProjectID:      opts.ProjectID,
		Title:          title,
		Status:         status,
		Priority:       priority,
		AssigneeID:     optionalString(opts.AssigneeID),
		EstimatedHours: opts.EstimatedHours,
		ActualHours:    opts.ActualHours,
		Progress:       opts.Progress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if project.EntityID != "" {
		t.EntityID = optionalString(project.EntityID)
	}
	if opts.DueDate != "" {
		due, err := repo.ParseDate(opts.DueDate)
		if err != nil {
			return domain.WorkItem{}, apperr.Wrap(apperr.CodeValidation, "invalid due_date", err)
		}
		t.DueDate = &due
	}
	if status == domain.StatusCompleted {
		t.CompletedAt = &now
	}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
			return conflictOr(err, "task", id)
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.TaskCreated,
			EntityID:   project.EntityID,
			TargetKind: "task",
			TargetID:   id,
			ActorID:    opts.ActorID,
			Payload:    events.EventPayload{"title": title, "status": string(status), "priority": string(priority)},
		})
	})
	if err != nil {
		return domain.WorkItem{}, err
	}
	return t, nil
}

// TaskUpdateOptions carries the fields to change; nil leaves a field alone.
// An empty Assign or DueDate clears it.
type TaskUpdateOptions struct {
	ID             string
	Status         *string
	Priority       *string
	DueDate        *string
	Assign         *string
	EstimatedHours *float64
	ActualHours    *float64
	Progress       *float64
	ActorID        string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.WorkItem, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return domain.WorkItem{}, notFoundOr(err, "task", opts.ID)
	}
	changes := events.EventPayload{}
	if opts.Status != nil {
		st, err := domain.ParseStatus(*opts.Status)
		if err != nil {
			return domain.WorkItem{}, apperr.Wrap(apperr.CodeValidation, "invalid status", err)
		}
		if st != t.Status {
			changes["status"] = map[string]string{"from": string(t.Status), "to": string(st)}
			t.Status = st
		}
	}
	if opts.Priority != nil {
		pr, err := domain.ParsePriority(*opts.Priority)
		if err != nil {
			return domain.WorkItem{}, apperr.Wrap(apperr.CodeValidation, "invalid priority", err)
		}
		t.Priority = pr
		changes["priority"] = string(pr)
	}
	if opts.DueDate != nil {
		t.DueDate = nil
		if strings.TrimSpace(*opts.DueDate) != "" {
			due, err := repo.ParseDate(*opts.DueDate)
			if err != nil {
				return domain.WorkItem{}, apperr.Wrap(apperr.CodeValidation, "invalid due_date", err)
			}
			t.DueDate = &due
		}
		changes["due_date"] = *opts.DueDate
	}
	if opts.Assign != nil {
		t.AssigneeID = optionalString(*opts.Assign)
		t.Assignee = nil
		if t.AssigneeID != nil {
			if _, err := e.Repo.GetAssignee(ctx, *t.AssigneeID); err != nil {
				return domain.WorkItem{}, notFoundOr(err, "assignee", *t.AssigneeID)
			}
		}
		changes["assignee_id"] = *opts.Assign
	}
	if err := validateMeasures(opts.EstimatedHours, opts.ActualHours, opts.Progress); err != nil {
		return domain.WorkItem{}, err
	}
	if opts.EstimatedHours != nil {
		t.EstimatedHours = opts.EstimatedHours
		changes["estimated_hours"] = *opts.EstimatedHours
	}
	if opts.ActualHours != nil {
		t.ActualHours = opts.ActualHours
		changes["actual_hours"] = *opts.ActualHours
	}
	if opts.Progress != nil {
		t.Progress = opts.Progress
		changes["progress"] = *opts.Progress
	}
	now := e.now()
	switch {
	case t.Status == domain.StatusCompleted && t.CompletedAt == nil:
		t.CompletedAt = &now
	case t.Status != domain.StatusCompleted:
		t.CompletedAt = nil
	}
	t.UpdatedAt = now
	entityID := ""
	if t.EntityID != nil {
		entityID = *t.EntityID
	}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
			return notFoundOr(err, "task", t.ID)
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.TaskUpdated,
			EntityID:   entityID,
			TargetKind: "task",
			TargetID:   t.ID,
			ActorID:    opts.ActorID,
			Payload:    changes,
		})
	})
	if err != nil {
		return domain.WorkItem{}, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

type ProcessCreateOptions struct {
	ID       string
	EntityID string
	Title    string
	Kind     string
	ActorID  string
}

var processKinds = map[string]bool{"hiring": true, "procurement": true}

// CreateProcess stores a new process at zero progress with one incomplete
// tracking row per catalogue phase.
func (e Engine) CreateProcess(ctx context.Context, opts ProcessCreateOptions) (domain.Process, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Process{}, apperr.New(apperr.CodeValidation, "title is required")
	}
	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	if kind == "" {
		kind = "hiring"
	}
	if !processKinds[kind] {
		return domain.Process{}, apperr.WithMetadata(apperr.CodeValidation, fmt.Sprintf("invalid process kind %q", opts.Kind),
			map[string]string{"kind": opts.Kind})
	}
	if _, err := e.Repo.GetEntity(ctx, opts.EntityID); err != nil {
		return domain.Process{}, notFoundOr(err, "entity", opts.EntityID)
	}
	defs, err := e.Repo.ListPhaseDefinitions(ctx)
	if err != nil {
		return domain.Process{}, fmt.Errorf("load phase catalogue: %w", err)
	}
	codes := make([]string, 0, len(defs))
	for _, d := range defs {
		codes = append(codes, d.Code)
	}
	now := e.stamp()
	id, err := e.recordID(opts.ID, "process|"+opts.EntityID+"|"+title+"|"+now)
	if err != nil {
		return domain.Process{}, err
	}
	p := domain.Process{
		ID:        id,
		EntityID:  opts.EntityID,
		Title:     title,
		Kind:      kind,
		Status:    domain.ProcessInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertProcessTx(ctx, tx, p); err != nil {
			return conflictOr(err, "process", id)
		}
		if err := e.Repo.SeedPhaseTrackingTx(ctx, tx, id, codes); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.ProcessCreated,
			EntityID:   p.EntityID,
			TargetKind: "process",
			TargetID:   id,
			ActorID:    opts.ActorID,
			Payload:    events.EventPayload{"title": title, "kind": kind, "phases": len(codes)},
		})
	})
	if err != nil {
		return domain.Process{}, err
	}
	return p, nil
}

// GrantRole binds targetActor to a configured role on an entity or on "all".
func (e Engine) GrantRole(ctx context.Context, g domain.RoleGrant, actorID string) error {
	if err := e.checkGrant(ctx, &g); err != nil {
		return err
	}
	return e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Auth.EnsureActor(ctx, tx, g.ActorID, e.stamp()); err != nil {
			return err
		}
		if err := e.Repo.GrantRole(ctx, tx, g); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.RoleGranted,
			EntityID:   g.EntityID,
			TargetKind: "actor",
			TargetID:   g.ActorID,
			ActorID:    actorID,
			Payload:    events.EventPayload{"role": g.RoleID},
		})
	})
}

func (e Engine) RevokeRole(ctx context.Context, g domain.RoleGrant, actorID string) error {
	if err := e.checkGrant(ctx, &g); err != nil {
		return err
	}
	return e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.RevokeRole(ctx, tx, g); err != nil {
			return notFoundOr(err, "role grant", g.ActorID+"/"+g.RoleID)
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.RoleRevoked,
			EntityID:   g.EntityID,
			TargetKind: "actor",
			TargetID:   g.ActorID,
			ActorID:    actorID,
			Payload:    events.EventPayload{"role": g.RoleID},
		})
	})
}

func (e Engine) checkGrant(ctx context.Context, g *domain.RoleGrant) error {
	g.ActorID = strings.TrimSpace(g.ActorID)
	g.RoleID = strings.TrimSpace(g.RoleID)
	g.EntityID = strings.TrimSpace(g.EntityID)
	if g.ActorID == "" || g.RoleID == "" {
		return apperr.New(apperr.CodeValidation, "actor and role are required")
	}
	if e.Config == nil {
		return errors.New("config not loaded")
	}
	if _, ok := e.Config.RBAC.Roles[g.RoleID]; !ok {
		return apperr.WithMetadata(apperr.CodeValidation, fmt.Sprintf("unknown role %q", g.RoleID), map[string]string{"role": g.RoleID})
	}
	if g.EntityID == "" || strings.EqualFold(g.EntityID, domain.ScopeAll) {
		g.EntityID = domain.ScopeAll
		return nil
	}
	if _, err := e.Repo.GetEntity(ctx, g.EntityID); err != nil {
		return notFoundOr(err, "entity", g.EntityID)
	}
	return nil
}

// CreatedAPIKey carries the raw key, which is shown once and never stored.
type CreatedAPIKey struct {
	domain.APIKey
	Key string `json:"key"`
}

func (e Engine) CreateAPIKey(ctx context.Context, ownerID, name, actorID string) (CreatedAPIKey, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return CreatedAPIKey{}, apperr.New(apperr.CodeValidation, "actor_id required")
	}
	raw, err := newRawKey()
	if err != nil {
		return CreatedAPIKey{}, err
	}
	now := e.stamp()
	key := domain.APIKey{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte("apikey|"+ownerID+"|"+raw)).String(),
		ActorID:   ownerID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: now,
	}
	err = e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Auth.EnsureActor(ctx, tx, ownerID, now); err != nil {
			return err
		}
		if err := e.Repo.InsertAPIKeyTx(ctx, tx, key); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.APIKeyCreated,
			EntityID:   domain.ScopeAll,
			TargetKind: "api_key",
			TargetID:   key.ID,
			ActorID:    actorID,
			Payload:    events.EventPayload{"owner": ownerID, "name": key.Name},
		})
	})
	if err != nil {
		return CreatedAPIKey{}, err
	}
	return CreatedAPIKey{APIKey: key, Key: raw}, nil
}

func (e Engine) RevokeAPIKey(ctx context.Context, id, actorID string) error {
	return e.Repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteAPIKeyTx(ctx, tx, id); err != nil {
			return notFoundOr(err, "api key", id)
		}
		return e.Events.Append(ctx, tx, events.Record{
			Type:       events.APIKeyRevoked,
			EntityID:   domain.ScopeAll,
			TargetKind: "api_key",
			TargetID:   id,
			ActorID:    actorID,
		})
	})
}

// Identity summarizes what an actor may do.
type Identity struct {
	ActorID string              `json:"actor_id"`
	Roles   []string            `json:"roles"`
	Grants  map[string][]string `json:"grants"`
}

func (e Engine) WhoAmI(ctx context.Context, actorID string) (Identity, error) {
	roles, err := e.Auth.Roles(ctx, actorID)
	if err != nil {
		return Identity{}, err
	}
	grants, err := e.Auth.Grants(ctx, actorID)
	if err != nil {
		return Identity{}, err
	}
	if roles == nil {
		roles = []string{}
	}
	return Identity{ActorID: actorID, Roles: roles, Grants: grants}, nil
}

func (e Engine) recordID(explicit, seed string) (string, error) {
	id := strings.TrimSpace(explicit)
	if id == "" {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed+"|"+e.now().Format(time.RFC3339Nano))).String(), nil
	}
	if !domain.ValidID(id) {
		return "", apperr.WithMetadata(apperr.CodeValidation, fmt.Sprintf("malformed id %q", id), map[string]string{"id": id})
	}
	return id, nil
}

// validateMeasures checks effort hours and a work item's progress percentage.
func validateMeasures(estimated, actual, progress *float64) error {
	for _, v := range []*float64{estimated, actual} {
		if v == nil {
			continue
		}
		if *v < 0 || *v != *v || *v > 1e9 {
			return apperr.New(apperr.CodeValidation, "hours must be finite and non-negative")
		}
	}
	if progress != nil && (*progress != *progress || *progress < 0 || *progress > 100) {
		return apperr.WithMetadata(apperr.CodeValidation, "progress must be between 0 and 100", map[string]string{"field": "progress"})
	}
	return nil
}

func newRawKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "ol_" + hex.EncodeToString(buf), nil
}

func notFoundOr(err error, kind, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.WithMetadata(apperr.CodeNotFound, fmt.Sprintf("%s %s not found", kind, id), map[string]string{"kind": kind, "id": id})
	}
	return err
}

func conflictOr(err error, kind, id string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperr.WithMetadata(apperr.CodeConflict, fmt.Sprintf("%s %s already exists", kind, id), map[string]string{"kind": kind, "id": id})
	}
	return fmt.Errorf("insert %s: %w", kind, err)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
