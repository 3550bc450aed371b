// Package httpapi exposes the harness over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/infra/sqlite"
	"github.com/soryxie/code-contests/internal/metrics"
	runtimex "github.com/soryxie/code-contests/internal/runtime"
	"github.com/soryxie/code-contests/internal/wire"
)

const maxRequestBytes = 16 << 20

// Executor runs a job to completion.
type Executor interface {
	Execute(ctx context.Context, job execution.Job) execution.RunReport
}

// RunStore persists and loads run reports. It is optional.
type RunStore interface {
	Save(ctx context.Context, report execution.RunReport) (string, error)
	GetRun(ctx context.Context, id string) (*sqlite.StoredRun, error)
	ListRunIDs(ctx context.Context, jobID string) ([]string, error)
}

// Pinger reports whether the execution backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Executor Executor
	Defaults execution.Options
	Store    RunStore
	Pinger   Pinger
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
}

type Server struct {
	executor Executor
	defaults execution.Options
	store    RunStore
	pinger   Pinger
	metrics  *metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// RunResponse is returned by POST /v1/runs and GET /v1/runs/{id}.
type RunResponse struct {
	RunID  string              `json:"run_id,omitempty"`
	Result wire.ResultEnvelope `json:"result"`
}

// RunListResponse is returned by GET /v1/runs?job_id=. RunIDs are newest first.
type RunListResponse struct {
	JobID  string   `json:"job_id"`
	RunIDs []string `json:"run_ids"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := cfg.Defaults
	if defaults.PoolSize <= 0 {
		defaults = execution.DefaultOptions()
	}
	return &Server{
		executor: cfg.Executor,
		defaults: defaults,
		store:    cfg.Store,
		pinger:   cfg.Pinger,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if s.metrics != nil {
		router.Use(s.metrics.Middleware(routePattern))
		router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	router.Get("/healthz", s.healthz)
	router.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.createRun)
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
	})
	return router
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var envelope wire.JobEnvelope
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	job, err := envelope.ToJob(s.defaults, uuid.NewString())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := s.executor.Execute(r.Context(), job)
	response := RunResponse{Result: wire.NewResultEnvelope(report, s.now())}

	if s.store != nil {
		runID, err := s.store.Save(r.Context(), report)
		if err != nil {
			s.logger.Error("failed to store run", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			response.RunID = runID
		}
	}

	status := http.StatusOK
	if report.Err != nil {
		status = statusFor(report.Err)
		s.logger.Warn("run failed", zap.String("job_id", job.ID), zap.Error(report.Err))
	}
	writeJSON(w, status, response)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "run storage is disabled")
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id query parameter is required")
		return
	}

	ids, err := s.store.ListRunIDs(r.Context(), jobID)
	if err != nil {
		s.logger.Error("failed to list runs", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{JobID: jobID, RunIDs: ids})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "run storage is disabled")
		return
	}

	stored, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sqlite.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to load run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	report := execution.RunReport{
		Job: execution.Job{
			ID: stored.JobID,
			Solution: execution.Solution{
				ID:       stored.SolutionID,
				Language: stored.Language,
			},
		},
		Result: stored.Result,
	}
	if stored.Error != "" {
		report.Err = errors.New(stored.Error)
	}
	writeJSON(w, http.StatusOK, RunResponse{
		RunID:  stored.ID,
		Result: wire.NewResultEnvelope(report, stored.CreatedAt),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, execution.ErrInvalidOptions), errors.Is(err, runtimex.ErrUnsupportedLanguage):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
