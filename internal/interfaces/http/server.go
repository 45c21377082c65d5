// Package http serves the read-only backtest monitor: health, Prometheus metrics
// and stored runs
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/razaquegoraya007/trading-bot-env/internal/persistence"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst        int           `yaml:"burst"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1:8080", // Local-only by default
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		RateLimit:    20,
		Burst:        40,
	}
}

// Server represents the read-only HTTP server
type Server struct {
	router  *mux.Router
	server  *http.Server
	config  ServerConfig
	runs    persistence.RunsRepo
	metrics *MetricsRegistry
	health  *HealthHandler
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewServer wires routes over the runs repository and metrics registry
func NewServer(config ServerConfig, runs persistence.RunsRepo, repoHealth persistence.RepositoryHealth,
	metrics *MetricsRegistry, version string, logger zerolog.Logger) *Server {

	s := &Server{
		router:  mux.NewRouter(),
		config:  config,
		runs:    runs,
		metrics: metrics,
		health:  NewHealthHandler(repoHealth, metrics, version),
		logger:  logger,
	}
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.rateLimitMiddleware)

	s.router.Handle("/health", s.health).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	s.router.HandleFunc("/runs", s.listRuns).Methods("GET")
	s.router.HandleFunc("/runs/{id}", s.getRun).Methods("GET")
	s.router.HandleFunc("/runs/{id}/trades", s.getTrades).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler exposes the router for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	q := r.URL.Query()
	filter := persistence.RunFilter{
		Strategy: q.Get("strategy"),
		Dataset:  q.Get("dataset"),
		Status:   q.Get("status"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = n
	}

	runs, err := s.runs.List(r.Context(), filter)
	if err != nil {
		s.repoError(w, r, err)
		return
	}
	if runs == nil {
		runs = []persistence.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		s.repoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	if _, err := s.runs.Get(r.Context(), id); err != nil {
		s.repoError(w, r, err)
		return
	}
	trades, err := s.runs.Trades(r.Context(), id)
	if err != nil {
		s.repoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": id, "trades": trades, "count": len(trades)})
}

func (s *Server) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) repoError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error().Err(err).
		Interface("request_id", r.Context().Value(requestIDKey)).
		Str("path", r.URL.Path).
		Msg("Repository request failed")
	writeError(w, http.StatusServiceUnavailable, "repository unavailable")
}

// requestIDMiddleware adds unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLoggingMiddleware logs all requests with structured format
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		s.logger.Info().
			Interface("request_id", r.Context().Value(requestIDKey)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("REQ")
	})
}

// rateLimitMiddleware rejects requests above the configured rate
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves until Shutdown; the address is checked first so a busy port
// fails fast
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("address %s is busy or unavailable: %w", s.config.Addr, err)
	}

	s.logger.Info().Str("addr", s.config.Addr).Msg("Starting HTTP server (read-only)")
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// responseWrapper captures response status codes
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
