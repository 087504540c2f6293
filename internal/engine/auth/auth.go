package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"opsline/internal/config"
	"opsline/internal/domain"
	"opsline/internal/repo"
)

// Permission identifiers referenced by roles in opsline.yml.
const (
	PermReportGlobal = "report.global"
	PermReportRead   = "report.read"
	PermPhaseToggle  = "phase.toggle"
	PermRecordsWrite = "records.write"
	PermRBACManage   = "rbac.manage"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
	EntityID   string
}

func (e ForbiddenError) Error() string {
	if e.EntityID == "" || e.EntityID == domain.ScopeAll {
		return fmt.Sprintf("permission %s required", e.Permission)
	}
	return fmt.Sprintf("permission %s required on entity %s", e.Permission, e.EntityID)
}

// Service resolves role grants stored in SQL against the roles declared in config.
type Service struct {
	Repo   repo.Repo
	Config *config.Config
}

func (s Service) EnsureActor(ctx context.Context, tx *sql.Tx, actorID, now string) error {
	if actorID == "" {
		return errors.New("actor_id required")
	}
	return s.Repo.EnsureActor(ctx, tx, actorID, now)
}

// ActorPermissions returns the permissions the actor holds on the entity,
// including those granted globally.
func (s Service) ActorPermissions(ctx context.Context, entityID, actorID string) ([]string, error) {
	roles, err := s.Repo.ActorRoles(ctx, entityID, actorID)
	if err != nil {
		return nil, err
	}
	perms := s.Config.PermissionsForRoles(roles)
	sort.Strings(perms)
	return perms, nil
}

func (s Service) ActorHasPermission(ctx context.Context, entityID, actorID, perm string) (bool, error) {
	perms, err := s.ActorPermissions(ctx, entityID, actorID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

// Require returns ForbiddenError when the actor lacks perm on the entity.
func (s Service) Require(ctx context.Context, entityID, actorID, perm string) error {
	ok, err := s.ActorHasPermission(ctx, entityID, actorID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Permission: perm, EntityID: entityID}
	}
	return nil
}

// Grants maps each entity scope the actor holds a role on ("all" included)
// to the permissions granted there.
func (s Service) Grants(ctx context.Context, actorID string) (map[string][]string, error) {
	grants, err := s.Repo.ListRoleGrants(ctx, actorID)
	if err != nil {
		return nil, err
	}
	roles := map[string][]string{}
	for _, g := range grants {
		roles[g.EntityID] = append(roles[g.EntityID], g.RoleID)
	}
	out := make(map[string][]string, len(roles))
	for entityID, ids := range roles {
		perms := s.Config.PermissionsForRoles(ids)
		sort.Strings(perms)
		out[entityID] = perms
	}
	return out, nil
}

// Roles lists the distinct roles granted to the actor across all scopes.
func (s Service) Roles(ctx context.Context, actorID string) ([]string, error) {
	grants, err := s.Repo.ListRoleGrants(ctx, actorID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var roles []string
	for _, g := range grants {
		if !seen[g.RoleID] {
			seen[g.RoleID] = true
			roles = append(roles, g.RoleID)
		}
	}
	sort.Strings(roles)
	return roles, nil
}
