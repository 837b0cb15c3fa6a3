package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blur702/legiscrawl/internal/state"
	"github.com/blur702/legiscrawl/internal/supervisor"
)

func newTestServer(status StatusFunc, check CheckFunc) *Server {
	return NewServer(status, check, nil)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Status(t *testing.T) {
	t.Parallel()

	report := supervisor.Report{
		RunID:          "run-1",
		Active:         true,
		Health:         supervisor.HealthOK,
		WorkerCount:    2,
		TotalUnits:     10,
		CompletedUnits: 4,
	}
	server := newTestServer(func() (supervisor.Report, error) {
		return report, nil
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got supervisor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, supervisor.HealthOK, got.Health)
	require.Equal(t, 4, got.CompletedUnits)
}

func TestServer_StatusNoRun(t *testing.T) {
	t.Parallel()

	server := newTestServer(func() (supervisor.Report, error) {
		return supervisor.Report{}, state.ErrNoRun
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "no run")
}

func TestServer_StatusReadFailure(t *testing.T) {
	t.Parallel()

	server := newTestServer(func() (supervisor.Report, error) {
		return supervisor.Report{}, errors.New("disk gone")
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Check(t *testing.T) {
	t.Parallel()

	server := newTestServer(nil, func() (supervisor.CheckResult, error) {
		return supervisor.CheckResult{
			RunID:   "run-1",
			Active:  true,
			Health:  supervisor.HealthDegraded,
			Workers: map[int]string{0: "alive", 1: "failed"},
		}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/check", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
