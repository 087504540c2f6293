package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"opsline/internal/analytics"
	"opsline/internal/apperr"
	"opsline/internal/domain"
	"opsline/internal/engine"
	"opsline/internal/engine/auth"
	"opsline/internal/phase"
	"opsline/internal/repo"
	"opsline/internal/telemetry"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Phases   *phase.Engine
	Reports  *analytics.Service
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_filter"`
	Message string         `json:"message" example:"malformed start_date"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"start_date\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the opsline API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Phases == nil {
		return nil, errors.New("phase engine required")
	}
	if cfg.Reports == nil {
		return nil, errors.New("report service required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newTraceMiddleware(logger))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Opsline API", "0.3.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerReports(group, cfg.Engine, cfg.Reports)
	registerPhases(group, cfg.Engine, cfg.Phases)
	registerEntities(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerAssignees(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerProcesses(group, cfg.Engine, cfg.Phases)
	registerEvents(group, cfg.Engine)
	registerRBAC(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission, "entity_id": fe.EntityID})
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		details := map[string]any{}
		for k, v := range ae.Metadata {
			details[k] = v
		}
		if len(details) == 0 {
			details = nil
		}
		switch ae.Code {
		case apperr.CodeInvalidFilter:
			return newAPIError(http.StatusBadRequest, "invalid_filter", ae.Message, details)
		case apperr.CodeValidation:
			return newAPIError(http.StatusBadRequest, "validation_failed", ae.Message, details)
		case apperr.CodeUnauthorized:
			return newAPIError(http.StatusForbidden, "unauthorized", ae.Message, details)
		case apperr.CodeNotFound:
			return newAPIError(http.StatusNotFound, "not_found", ae.Message, details)
		case apperr.CodeConflict:
			return newAPIError(http.StatusConflict, "conflict", ae.Message, details)
		case apperr.CodeDataUnavailable:
			return newAPIError(http.StatusServiceUnavailable, "data_unavailable", ae.Message, details)
		case apperr.CodeInvalidCatalogue:
			return newAPIError(http.StatusInternalServerError, "invalid_catalogue", ae.Message, details)
		}
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusServiceUnavailable:
		return "data_unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func hasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// requirePermission checks perm on entityID. Permissions carried by the
// token apply to every entity.
func requirePermission(ctx context.Context, e engine.Engine, entityID, perm string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if hasPermission(principal.Permissions, perm) {
		return nil
	}
	return e.Auth.Require(ctx, entityID, principal.ActorID, perm)
}

// requestContext resolves the caller's grants for report-style reads. The
// active entity comes from the X-Entity-Id header, then the token.
func requestContext(ctx context.Context, e engine.Engine) (analytics.RequestContext, error) {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return analytics.RequestContext{}, authErr
	}
	grants, err := e.Auth.Grants(ctx, principal.ActorID)
	if err != nil {
		return analytics.RequestContext{}, err
	}
	if len(principal.Permissions) > 0 {
		grants[domain.ScopeAll] = append(grants[domain.ScopeAll], principal.Permissions...)
	}
	rc := analytics.RequestContext{ActorID: principal.ActorID, ActiveEntityID: principal.EntityID, Grants: grants}
	if req, ok := ctx.Value(requestKey{}).(*http.Request); ok && req != nil {
		if header := strings.TrimSpace(req.Header.Get("X-Entity-Id")); header != "" {
			rc.ActiveEntityID = header
		}
	}
	return rc, nil
}

// authorizeScope normalizes the scope arguments of a list request and checks
// the caller may read it.
func authorizeScope(ctx context.Context, e engine.Engine, raw analytics.RawFilter) (filterScope, error) {
	rc, err := requestContext(ctx, e)
	if err != nil {
		return filterScope{}, err
	}
	f, err := analytics.NormalizeFilter(raw, rc)
	if err != nil {
		return filterScope{}, err
	}
	if err := analytics.Authorize(rc, f); err != nil {
		return filterScope{}, err
	}
	return filterScope{Filter: f, Context: rc}, nil
}

type filterScope struct {
	Filter  domain.ReportFilter
	Context analytics.RequestContext
}

func newTraceMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ctx, span := telemetry.Tracer().Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			), trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			span.SetAttributes(attribute.Int("http.status_code", rec.status))
			logger.DebugContext(ctx, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(started).Milliseconds(),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Opsline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key. Send X-Entity-Id to pick the active entity.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
