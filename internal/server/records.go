package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"opsline/internal/analytics"
	"opsline/internal/domain"
	"opsline/internal/engine"
	"opsline/internal/engine/auth"
	"opsline/internal/phase"
)

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
}

func registerEntities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-entity",
		Method:        http.MethodPost,
		Path:          "/entities",
		Summary:       "Create entity",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateEntityRequest `json:"body"`
	}) (*struct {
		Body domain.Entity `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, domain.ScopeAll, auth.PermRecordsWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, _ := actorIDFromContext(ctx)
		ent, err := e.CreateEntity(ctx, engine.EntityCreateOptions{ID: input.Body.ID, Name: input.Body.Name, ActorID: actorID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Entity `json:"body"`
		}{Body: ent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-entities",
		Method:      http.MethodGet,
		Path:        "/entities",
		Summary:     "List entities readable by the caller",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Entity `json:"body"`
	}, error) {
		rc, err := requestContext(ctx, e)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListEntities(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		visible := []domain.Entity{}
		for _, ent := range items {
			if analytics.Authorize(rc, domain.ReportFilter{EntityID: ent.ID}) == nil {
				visible = append(visible, ent)
			}
		}
		return &struct {
			Body []domain.Entity `json:"body"`
		}{Body: visible}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if input.Body.EntityID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "entity_id is required", nil)
		}
		if err := requirePermission(ctx, e, input.Body.EntityID, auth.PermRecordsWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, _ := actorIDFromContext(ctx)
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:          input.Body.ID,
			EntityID:    input.Body.EntityID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EntityID string `query:"entity_id" doc:"Entity id or all; defaults to X-Entity-Id"`
	}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		scope, err := authorizeScope(ctx, e, analytics.RawFilter{EntityID: input.EntityID})
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProjects(ctx, scope.Filter.EntityID, domain.ScopeAll)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project status or description",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		existing, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requirePermission(ctx, e, existing.EntityID, auth.PermRecordsWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, _ := actorIDFromContext(ctx)
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ID:          input.ProjectID,
			Status:      input.Body.Status,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})
}

func registerAssignees(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-assignee",
		Method:        http.MethodPost,
		Path:          "/assignees",
		Summary:       "Create assignee",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateAssigneeRequest `json:"body"`
	}) (*struct {
		Body domain.Assignee `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, domain.ScopeAll, auth.PermRecordsWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, _ := actorIDFromContext(ctx)
		a, err := e.CreateAssignee(ctx, engine.AssigneeCreateOptions{
			ID:      input.Body.ID,
			Name:    input.Body.Name,
			Email:   input.Body.Email,
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignee `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assignees",
		Method:      http.MethodGet,
		Path:        "/assignees",
		Summary:     "List assignees",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Assignee `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListAssignees(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Assignee `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create work item",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.WorkItem `json:"body"`
	}, error) {
		project, err := e.Repo.GetProject(ctx, input.Body.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requirePermission(ctx, e, project.EntityID, auth.PermRecordsWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, _ := actorIDFromContext(ctx)
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ID:             input.Body.ID,
			ProjectID:      input.Body.ProjectID,
			Title:          input.Body.Title,
			Status:         input.Body.Status,
			Priority:       input.Body.Priority,
			DueDate:        input.Body.DueDate,
			AssigneeID:     input.Body.AssigneeID,
			EstimatedHours: input.Body.EstimatedHours,
			ActualHours:    input.Body.ActualHours,
			Progress:       input.Body.Progress,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkItem `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List work items, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EntityID   string   `query:"entity_id"`
		ProjectID  string   `query:"project_id"`
		AssigneeID string   `query:"assignee_id"`
		Status     []string `query:"status"`
		Priority   []string `query:"priority"`
		Limit      int      `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.WorkItem `json:"body"`
	}, error) {
		scope, err := authorizeScope(ctx, e, analytics.RawFilter{
			EntityID:   input.EntityID,
			ProjectID:  input.ProjectID,
			AssigneeID: input.AssigneeID,
			Status:     input.Status,
			Priority:   input.Priority,
		})
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.FetchWorkItems(ctx, scope.Filter)
		if err != nil {
			return nil, handleError(err)
		}
		if limit := normalizeLimit(input.Limit); len(items) > limit {
			items = items[:limit]
		}
		return &struct {
			Body []domain.WorkItem `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update work item",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.WorkItem `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		existing, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		entityID := domain.ScopeAll
		if existing.EntityID != nil {
			entityID = *existing.EntityID
		}
		if err := requirePermission(ctx, e, entityID, auth.PermRecordsWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, _ := actorIDFromContext(ctx)
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:             input.TaskID,
			Status:         input.Body.Status,
			Priority:       input.Body.Priority,
			DueDate:        input.Body.DueDate,
			Assign:         input.Body.AssigneeID,
			EstimatedHours: input.Body.EstimatedHours,
			ActualHours:    input.Body.ActualHours,
			Progress:       input.Body.Progress,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkItem `json:"body"`
		}{Body: t}, nil
	})
}

func registerProcesses(api huma.API, e engine.Engine, phases *phase.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-process",
		Method:        http.MethodPost,
		Path:          "/processes",
		Summary:       "Create hiring or procurement process",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProcessRequest `json:"body"`
	}) (*struct {
		Body domain.Process `json:"body"`
	}, error) {
		if input.Body.EntityID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "entity_id is required", nil)
		}
		if err := requirePermission(ctx, e, input.Body.EntityID, auth.PermRecordsWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, _ := actorIDFromContext(ctx)
		p, err := e.CreateProcess(ctx, engine.ProcessCreateOptions{
			ID:       input.Body.ID,
			EntityID: input.Body.EntityID,
			Title:    input.Body.Title,
			Kind:     input.Body.Kind,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Process `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/processes",
		Summary:     "List processes",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EntityID string `query:"entity_id"`
	}) (*struct {
		Body []domain.Process `json:"body"`
	}, error) {
		scope, err := authorizeScope(ctx, e, analytics.RawFilter{EntityID: input.EntityID})
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProcesses(ctx, scope.Filter.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Process `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/processes/{process_id}",
		Summary:     "Get process",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct {
		Body phase.State `json:"body"`
	}, error) {
		state, err := readProcessState(ctx, e, phases, input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body phase.State `json:"body"`
		}{Body: state}, nil
	})
}
