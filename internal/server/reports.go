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

func registerReports(api huma.API, e engine.Engine, reports *analytics.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "generate-report",
		Method:      http.MethodPost,
		Path:        "/reports",
		Summary:     "Generate an operational report snapshot",
		Description: "Normalizes the filter, checks the caller's entity scope and returns the assembled snapshot. " +
			"An omitted entity_id falls back to the X-Entity-Id header; entity_id=all requires report.global.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Body analytics.RawFilter `json:"body"`
	}) (*struct {
		Body domain.ReportSnapshot `json:"body"`
	}, error) {
		rc, err := requestContext(ctx, e)
		if err != nil {
			return nil, handleError(err)
		}
		snap, err := reports.Report(ctx, rc, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ReportSnapshot `json:"body"`
		}{Body: snap}, nil
	})
}

func registerPhases(api huma.API, e engine.Engine, phases *phase.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-phases",
		Method:      http.MethodGet,
		Path:        "/phases",
		Summary:     "Phase catalogue",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.PhaseDefinition `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body []domain.PhaseDefinition `json:"body"`
		}{Body: phases.Catalogue()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process-phases",
		Method:      http.MethodGet,
		Path:        "/processes/{process_id}/phases",
		Summary:     "Process checklist with derived progress and status",
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

	huma.Register(api, huma.Operation{
		OperationID: "toggle-phase",
		Method:      http.MethodPost,
		Path:        "/processes/{process_id}/phases/{phase_code}",
		Summary:     "Mark a phase complete or incomplete",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		ProcessID string             `path:"process_id"`
		PhaseCode string             `path:"phase_code"`
		Body      TogglePhaseRequest `json:"body"`
	}) (*struct {
		Body phase.State `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		proc, err := e.Repo.GetProcess(ctx, input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requirePermission(ctx, e, proc.EntityID, auth.PermPhaseToggle); err != nil {
			return nil, handleError(err)
		}
		state, err := phases.Toggle(ctx, phase.ToggleInput{
			ProcessID: input.ProcessID,
			PhaseCode: input.PhaseCode,
			Completed: input.Body.Completed,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body phase.State `json:"body"`
		}{Body: state}, nil
	})
}

// readProcessState loads a process checklist after checking the caller may
// read the process's entity.
func readProcessState(ctx context.Context, e engine.Engine, phases *phase.Engine, processID string) (phase.State, error) {
	proc, err := e.Repo.GetProcess(ctx, processID)
	if err != nil {
		return phase.State{}, err
	}
	if _, err := authorizeScope(ctx, e, analytics.RawFilter{EntityID: proc.EntityID}); err != nil {
		return phase.State{}, err
	}
	return phases.Get(ctx, processID)
}
