// Package server exposes a Panel over HTTP: JSON endpoints for discussions,
// conversations, the model catalog and health, plus an SSE stream for live
// discussions.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/hupe1980/agentpanel"
	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/internal/metrics"
	"github.com/hupe1980/agentpanel/logging"
)

// Options configures a Server.
type Options struct {
	Logger logging.Logger

	// Metrics records per-route request metrics when set.
	Metrics *metrics.Collector

	// Gatherer backs /metrics. Defaults to the default Prometheus gatherer.
	Gatherer prometheus.Gatherer

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string

	// Services reports configured backends on /api/health.
	Services map[string]bool

	Clock func() time.Time
}

// Server routes HTTP requests to a Panel.
type Server struct {
	panel   *agentpanel.Panel
	opts    Options
	router  *mux.Router
	handler http.Handler
}

// New creates a Server with all routes registered.
func New(panel *agentpanel.Panel, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		Gatherer:    prometheus.DefaultGatherer,
		CORSOrigins: []string{"*"},
		Clock:       time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		panel:  panel,
		opts:   opts,
		router: mux.NewRouter(),
	}
	s.router.Use(s.instrument)
	s.registerRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the root handler including CORS.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/discuss", s.handleDiscuss).Methods(http.MethodPost)
	api.HandleFunc("/discuss", s.handleListParticipants).Methods(http.MethodGet)
	api.HandleFunc("/discuss/stream", s.handleDiscussStream).Methods(http.MethodPost)

	// export and import are registered before {id} so they are not taken as ids.
	api.HandleFunc("/conversations/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/conversations/import", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleCreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)

	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// statusRecorder captures the response status. It forwards Flush so SSE
// handlers keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.opts.Clock()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		d := s.opts.Clock().Sub(start)
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordHTTPRequest(r.Method, route, rec.status, d)
		}
		s.opts.Logger.Debug("http request", "method", r.Method, "route", route, "status", rec.status, "duration_ms", d.Milliseconds())
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Error("encode response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.opts.Logger.Error("request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
