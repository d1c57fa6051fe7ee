// Package httpapi is the read-only price-history HTTP surface: a gorilla/mux
// router with request-ID, structured logging, and per-request timeout
// middleware wrapping the /history, /healthz, and /metrics routes.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type requestIDKey struct{}

// Checker is consulted by /healthz; any non-nil error maps to a 503.
type Checker interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RequestDeadline time.Duration
}

// DefaultConfig matches the port default from the environment contract
// (PORT, default 3000) and a 10-second per-request deadline.
func DefaultConfig(port int) Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            port,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		RequestDeadline: 10 * time.Second,
	}
}

// Server is the history API's HTTP surface.
type Server struct {
	router *mux.Router
	server *http.Server
	config Config
}

// New builds a Server bound to addr. It checks the port is available up
// front so a misconfigured deployment fails fast instead of timing out on
// its first request.
func New(config Config, engine QueryRunner, checkers ...Checker) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: port %d is busy or unavailable: %w", config.Port, err)
	}
	listener.Close()

	s := &Server{config: config}
	s.router = mux.NewRouter()
	s.setupRoutes(engine, checkers)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s, nil
}

func (s *Server) setupRoutes(engine QueryRunner, checkers []Checker) {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	s.router.HandleFunc("/history", newHistoryHandler(engine)).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", newHealthzHandler(checkers)).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("request_id", fmt.Sprintf("%v", r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("httpapi: request handled")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.TimeoutHandler(next, s.config.RequestDeadline, `{"error":"request timed out"}`)
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("httpapi: starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("httpapi: shutting down")
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
