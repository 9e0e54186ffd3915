// Package server exposes the HTTP API: ticket intake, status queries,
// rate-limit introspection, health, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskops-io/deskops/pkg/config"
	"github.com/deskops-io/deskops/pkg/ratelimit"
	"github.com/deskops-io/deskops/pkg/workflow"
)

// StatsSource reports limiter occupancy for the introspection endpoint.
type StatsSource interface {
	Stats() ratelimit.Stats
}

// Runner is the workflow surface the server drives.
type Runner interface {
	Run(ctx context.Context, ticket workflow.Ticket) (*workflow.Result, error)
	Status(ticketID string) *workflow.Snapshot
}

// Server is the HTTP API front end.
type Server struct {
	cfg        *config.ServerConfig
	runner     Runner
	stats      StatsSource
	metrics    *Metrics
	httpServer *http.Server
}

// New creates the API server.
func New(cfg *config.ServerConfig, runner Runner, stats StatsSource) *Server {
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		stats:   stats,
		metrics: NewMetrics(stats.Stats),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tickets", s.handleCreateTicket)
		r.Get("/tickets/{id}", s.handleTicketStatus)
		r.Get("/ratelimit", s.handleRateLimit)
	})
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	return r
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type createTicketRequest struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UserEmail   string `json:"user_email,omitempty"`
	Category    string `json:"category,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// handleCreateTicket runs the workflow synchronously and returns the
// outcome. A ticket with a run already in flight gets 409.
func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	result, err := s.runner.Run(r.Context(), workflow.Ticket{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		UserEmail:   req.UserEmail,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		if errors.Is(err, workflow.ErrRunActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("workflow run failed", "ticket_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "workflow run failed")
		return
	}

	s.metrics.ObserveRun(string(result.Status), result.DurationSeconds, result.Escalated)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTicketStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.runner.Status(chi.URLParam(r, "id"))
	if snap.Status == workflow.StatusNotFound {
		writeJSON(w, http.StatusNotFound, snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}
