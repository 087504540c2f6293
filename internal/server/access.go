package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"opsline/internal/analytics"
	"opsline/internal/domain"
	"opsline/internal/engine"
	"opsline/internal/engine/auth"
	"opsline/internal/repo"
)

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EntityID   string `query:"entity_id" doc:"Entity id or all; defaults to X-Entity-Id"`
		Type       string `query:"type"`
		TargetKind string `query:"target_kind" enum:"entity,project,assignee,task,process,actor,api_key"`
		TargetID   string `query:"target_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		scope, err := authorizeScope(ctx, e, analytics.RawFilter{EntityID: input.EntityID})
		if err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = parsed
		}
		items, err := e.Repo.LatestEvents(ctx, repo.EventQuery{
			EntityID:   scope.Filter.EntityID,
			Type:       input.Type,
			TargetKind: input.TargetKind,
			TargetID:   input.TargetID,
			Before:     before,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerRBAC(api huma.API, e engine.Engine) {
	change := func(grant bool) func(context.Context, *struct {
		Body RoleChangeRequest `json:"body"`
	}) (*struct{}, error) {
		return func(ctx context.Context, input *struct {
			Body RoleChangeRequest `json:"body"`
		}) (*struct{}, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			entityID := strings.TrimSpace(input.Body.EntityID)
			if entityID == "" {
				entityID = domain.ScopeAll
			}
			if err := requirePermission(ctx, e, entityID, auth.PermRBACManage); err != nil {
				return nil, handleError(err)
			}
			g := domain.RoleGrant{EntityID: entityID, ActorID: input.Body.ActorID, RoleID: input.Body.RoleID}
			var err error
			if grant {
				err = e.GrantRole(ctx, g, actorID)
			} else {
				err = e.RevokeRole(ctx, g, actorID)
			}
			if err != nil {
				return nil, handleError(err)
			}
			return &struct{}{}, nil
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "grant-role",
		Method:        http.MethodPost,
		Path:          "/rbac/grant",
		Summary:       "Grant role",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, change(true))
	huma.Register(api, huma.Operation{
		OperationID:   "revoke-role",
		Method:        http.MethodPost,
		Path:          "/rbac/revoke",
		Summary:       "Revoke role",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, change(false))
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		who, err := e.WhoAmI(ctx, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		roles := append(append([]string{}, who.Roles...), principal.Roles...)
		perms := append([]string{}, principal.Permissions...)
		for _, ps := range who.Grants {
			perms = append(perms, ps...)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     principal.ActorID,
			Source:      principal.Source,
			Roles:       uniqueSorted(roles),
			Permissions: uniqueSorted(perms),
			Grants:      who.Grants,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.ActorID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, input.Body, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func uniqueSorted(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range in {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
