package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// RecordQuery reads stored records and sessions for the API endpoints.
type RecordQuery interface {
	LatestForecasts(ctx context.Context, location string) ([]domain.ForecastDay, error)
	LatestMedia(ctx context.Context) ([]domain.ForecastMedia, error)
	LatestWarnings(ctx context.Context) ([]domain.WeatherWarning, error)
	LatestSession(ctx context.Context) (*domain.ScrapeSession, error)
	RecentSessions(ctx context.Context, limit int) ([]domain.ScrapeSession, error)
}

// RunTrigger requests an immediate scrape run.
type RunTrigger interface {
	TriggerNow() bool
}

// Server exposes health, readiness, metrics, and the read API.
type Server struct {
	httpServer *http.Server
	query      RecordQuery
	trigger    RunTrigger
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, ready ReadinessChecker, query RecordQuery, trigger RunTrigger, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		query:   query,
		trigger: trigger,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/forecasts", s.handleForecasts)
	mux.HandleFunc("GET /api/v1/media", s.handleMedia)
	mux.HandleFunc("GET /api/v1/warnings", s.handleWarnings)
	mux.HandleFunc("GET /api/v1/sessions/latest", s.handleLatestSession)
	mux.HandleFunc("GET /api/v1/sessions", s.handleSessions)
	mux.HandleFunc("POST /api/v1/runs", s.handleTriggerRun)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.query.LatestForecasts(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		s.serverError(w, "forecast query failed", err)
		return
	}
	if recs == nil {
		recs = []domain.ForecastDay{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	recs, err := s.query.LatestMedia(r.Context())
	if err != nil {
		s.serverError(w, "media query failed", err)
		return
	}
	if recs == nil {
		recs = []domain.ForecastMedia{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.query.LatestWarnings(r.Context())
	if err != nil {
		s.serverError(w, "warning query failed", err)
		return
	}
	if recs == nil {
		recs = []domain.WeatherWarning{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleLatestSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.query.LatestSession(r.Context())
	if err != nil {
		s.serverError(w, "session query failed", err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no sessions yet"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}
	sessions, err := s.query.RecentSessions(r.Context(), limit)
	if err != nil {
		s.serverError(w, "session query failed", err)
		return
	}
	if sessions == nil {
		sessions = []domain.ScrapeSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleTriggerRun requests an immediate scrape. The response says whether
// the trigger was accepted; a run already in progress drops it.
func (s *Server) handleTriggerRun(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": s.trigger.TriggerNow()})
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
