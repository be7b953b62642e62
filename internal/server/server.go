// Package server exposes a router over HTTP: health of every data source,
// which target a request's key selects, and a ping through the router.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/routedb/internal/datasource"
	"github.com/rickgao/routedb/internal/metrics"
	"github.com/rickgao/routedb/internal/router"
	"github.com/rickgao/routedb/internal/version"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// Sources is the set of named data sources behind the router.
type Sources interface {
	Names() []string
	Get(name string) (datasource.Provider, bool)
	Ping(ctx context.Context) map[string]error
}

// Server holds the HTTP handlers.
type Server struct {
	router      *router.Router
	sources     Sources
	bind        KeyBinder
	metrics     *metrics.Collector
	metricsPath string
	logger      *slog.Logger
	pingTimeout time.Duration

	// names maps providers back to their data source names.
	names map[datasource.Provider]string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves c on path.
func WithMetrics(c *metrics.Collector, path string) Option {
	return func(s *Server) {
		s.metrics = c
		s.metricsPath = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPingTimeout bounds each health and ping check.
func WithPingTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.pingTimeout = d
	}
}

// New creates a Server.
func New(r *router.Router, sources Sources, bind KeyBinder, opts ...Option) *Server {
	s := &Server{
		router:      r,
		sources:     sources,
		bind:        bind,
		logger:      slog.Default(),
		pingTimeout: 5 * time.Second,
		names:       make(map[datasource.Provider]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, name := range sources.Names() {
		if p, ok := sources.Get(name); ok {
			s.names[p] = name
		}
	}
	return s
}

// Handler returns the HTTP handler for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /route", s.withKey(http.HandlerFunc(s.handleRoute)))
	mux.Handle("/ping", s.withKey(http.HandlerFunc(s.handlePing)))
	if s.metrics != nil && s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.metrics.Handler())
	}
	return s.withRequestID(mux)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) withKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bound, err := s.bind(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		next.ServeHTTP(w, bound)
	})
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.pingTimeout)
	defer cancel()

	health := healthResponse{
		Status:     "healthy",
		Version:    version.String(),
		Components: make(map[string]string),
	}

	failed := s.sources.Ping(ctx)
	for _, name := range s.sources.Names() {
		if err, ok := failed[name]; ok {
			health.Status = "unhealthy"
			health.Components[name] = "disconnected: " + err.Error()
		} else {
			health.Components[name] = "connected"
		}
	}
	if !s.router.Initialized() {
		health.Status = "unhealthy"
		health.Components["router"] = "not initialized"
	} else {
		health.Components["router"] = "initialized"
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

type routeResponse struct {
	Router string `json:"router"`
	Key    string `json:"key,omitempty"`
	Target string `json:"target"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	p, err := s.router.DetermineTarget(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, routeResponse{
		Router: s.router.Name(),
		Key:    formatKey(s.router.CurrentKey(r.Context())),
		Target: s.nameOf(p),
	})
}

type pingResponse struct {
	routeResponse
	LatencyMS float64 `json:"latency_ms"`
}

// handlePing acquires a connection through the router and pings it. Basic
// auth credentials, when present, are used for the acquisition.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.pingTimeout)
	defer cancel()

	p, err := s.router.DetermineTarget(ctx)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	start := time.Now()
	var conn datasource.Conn
	if user, pass, ok := r.BasicAuth(); ok {
		conn, err = s.router.AcquireWith(ctx, datasource.Credentials{User: user, Password: pass})
	} else {
		conn, err = s.router.Acquire(ctx)
	}
	if err != nil {
		s.logger.Warn("acquire failed", "target", s.nameOf(p), "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	defer conn.Release()

	if err := conn.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	writeJSON(w, http.StatusOK, pingResponse{
		routeResponse: routeResponse{
			Router: s.router.Name(),
			Key:    formatKey(s.router.CurrentKey(ctx)),
			Target: s.nameOf(p),
		},
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (s *Server) nameOf(p datasource.Provider) string {
	if name, ok := s.names[p]; ok {
		return name
	}
	return fmt.Sprintf("%T", p)
}

func formatKey(key any) string {
	if key == nil {
		return ""
	}
	return fmt.Sprint(key)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrNoTarget), errors.Is(err, router.ErrInvalidKey):
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrCredentialsUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusServiceUnavailable
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
