// Package webui serves the roadmap generator over a JSON HTTP API.
//
// Generation, drafts and feedback submission are public. Reading or exporting
// stored roadmaps, listing feedback, usage reports, logs and secrets require
// HTTP Basic authentication as user "admin" with the configured admin password.
package webui

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roadmapbp/pkg/llm/middleware/metrics"
	"roadmapbp/pkg/logx"
	"roadmapbp/pkg/persistence"
	"roadmapbp/pkg/roadmap"
	"roadmapbp/pkg/version"
)

const (
	adminUser    = "admin"
	authRealm    = `Basic realm="roadmapbp admin"`
	maxBodyBytes = 1 << 20

	shutdownTimeout = 5 * time.Second
)

// Generator runs one full roadmap generation.
type Generator interface {
	Generate(ctx context.Context, raw string) (*roadmap.Result, error)
}

// Drafter produces independent whole-roadmap drafts.
type Drafter interface {
	Drafts(ctx context.Context, raw string, n int) ([]roadmap.DraftOutcome, error)
}

// FeedbackSubmitter records feedback votes.
type FeedbackSubmitter interface {
	SubmitFeedback(ctx context.Context, fb roadmap.Feedback) roadmap.FeedbackResult
}

// RecordReader is the read side of persistence.Store.
type RecordReader interface {
	GetRoadmap(ctx context.Context, id string) (*persistence.RoadmapRecord, error)
	ListRoadmaps(ctx context.Context, limit int) ([]persistence.RoadmapRecord, error)
	ListFeedback(ctx context.Context, limit int) ([]persistence.FeedbackRecord, error)
}

// UsageSource reports token usage per pipeline stage.
type UsageSource interface {
	GetStageUsage(ctx context.Context) ([]metrics.StageUsage, error)
}

// UsageFunc adapts an in-process usage snapshot to UsageSource.
type UsageFunc func() []metrics.StageUsage

// GetStageUsage implements UsageSource.
func (f UsageFunc) GetStageUsage(context.Context) ([]metrics.StageUsage, error) {
	return f(), nil
}

// Deps wires the server to the rest of the application. Nil members disable
// the routes that need them.
type Deps struct {
	Generator       Generator
	Drafter         Drafter
	Feedback        FeedbackSubmitter
	Records         RecordReader
	Usage           UsageSource
	Gatherer        prometheus.Gatherer // serves /metrics when set
	AdminPassword   string              // empty denies every admin route
	SecretsPath     string
	SecretsPassword string // empty keeps secret edits in memory only
	DefaultDrafts   int
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	router *mux.Router
	logger *logx.Logger
}

// NewServer builds the server and its routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		logger: logx.NewLogger("webui"),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/roadmaps", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/drafts", s.handleDrafts).Methods(http.MethodPost)
	api.HandleFunc("/feedback", s.handleFeedback).Methods(http.MethodPost)

	api.HandleFunc("/roadmaps", s.requireAdmin(s.handleListRoadmaps)).Methods(http.MethodGet)
	api.HandleFunc("/roadmaps/{id}", s.requireAdmin(s.handleGetRoadmap)).Methods(http.MethodGet)
	api.HandleFunc("/roadmaps/{id}/export", s.requireAdmin(s.handleExport)).Methods(http.MethodGet)
	api.HandleFunc("/feedback", s.requireAdmin(s.handleListFeedback)).Methods(http.MethodGet)
	api.HandleFunc("/usage", s.requireAdmin(s.handleUsage)).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.requireAdmin(s.handleLogs)).Methods(http.MethodGet)

	api.HandleFunc("/secrets", s.requireAdmin(s.handleSecretsList)).Methods(http.MethodGet)
	api.HandleFunc("/secrets", s.requireAdmin(s.handleSecretsSet)).Methods(http.MethodPost)
	api.HandleFunc("/secrets/{name}", s.requireAdmin(s.handleSecretsDelete)).Methods(http.MethodDelete)

	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// requireAdmin wraps a handler with Basic Authentication.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expected := s.deps.AdminPassword
		if expected == "" {
			s.logger.Warn("Admin password not set - denying access to %s", r.URL.Path)
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(adminUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
		if !userOK || !passOK {
			s.logger.Warn("Failed authentication attempt from %s (username: %s)", r.RemoteAddr, username)
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Event(logx.LevelDebug, "request", logx.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	//nolint:contextcheck // parent context is canceled; shutdown needs a fresh one
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

// handleHealth implements GET /api/healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleLogs implements GET /api/logs.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var since time.Time
	if sinceStr := query.Get("since"); sinceStr != "" {
		var err error
		since, err = time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid since parameter (use RFC3339)")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, logx.GetRecentLogEntries(query.Get("domain"), since))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
