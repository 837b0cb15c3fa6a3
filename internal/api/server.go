// Package api exposes the read-only HTTP surface of a running pool: health,
// run status, and Prometheus metrics. It never mutates run state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blur702/legiscrawl/internal/state"
	"github.com/blur702/legiscrawl/internal/supervisor"
)

// StatusFunc produces the current run report.
type StatusFunc func() (supervisor.Report, error)

// CheckFunc produces the lightweight liveness classification.
type CheckFunc func() (supervisor.CheckResult, error)

// Server wires HTTP handlers to the status and check readers.
type Server struct {
	router chi.Router
	status StatusFunc
	check  CheckFunc
	logger *zap.Logger
}

// NewServer constructs a Server with its routes registered.
func NewServer(status StatusFunc, check CheckFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		status: status,
		check:  check,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/status", s.getStatus)
	r.Get("/check", s.getCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is canceled, then shuts it down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("status server listening", zap.String("addr", srv.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	report, err := s.status()
	if err != nil {
		if errors.Is(err, state.ErrNoRun) {
			s.writeError(w, http.StatusNotFound, "no run")
			return
		}
		s.logger.Error("status read failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) getCheck(w http.ResponseWriter, _ *http.Request) {
	result, err := s.check()
	if err != nil {
		if errors.Is(err, state.ErrNoRun) {
			s.writeError(w, http.StatusNotFound, "no run")
			return
		}
		s.logger.Error("check read failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "check unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
