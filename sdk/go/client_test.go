package opslinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportSendsFilterAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/reports", r.URL.Path)
		require.Equal(t, "ent-1", r.Header.Get("X-Entity-Id"))
		require.Equal(t, "ol_key", r.Header.Get("X-Api-Key"))
		var req ReportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"completed"}, req.Status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total_tasks":       3,
			"completed_tasks":   1,
			"tasks_by_priority": map[string]int{"high": 2},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "ent-1")
	c.APIKey = "ol_key"
	rep, err := c.Report(context.Background(), ReportRequest{Status: []string{"completed"}})
	require.NoError(t, err)
	require.Equal(t, 3, rep.TotalTasks)
	require.Equal(t, 2, rep.TasksByPriority["high"])
}

func TestErrorEnvelopeIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"scope denied"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").TogglePhase(context.Background(), "proc-1", "ficha_tecnica", true)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, "unauthorized", apiErr.Code)
}

func TestEventsPageQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		require.Equal(t, "42", r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(`{"items":[{"id":41,"type":"phase.toggled"}],"next_cursor":"41"}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL, "").EventsPage(context.Background(), 5, "42")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "41", page.NextCursor)
}
