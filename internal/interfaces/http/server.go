// Package http serves the simulator API: derived progression state, store
// mutations, a WebSocket progress stream and Prometheus metrics.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Server wraps the mux router and the underlying http.Server.
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *Handlers
	hub      *Hub
	metrics  *MetricsRegistry
	logger   zerolog.Logger
	config   ServerConfig
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer builds the server and its routes.
func NewServer(config ServerConfig, handlers *Handlers, hub *Hub, metrics *MetricsRegistry, logger zerolog.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: handlers,
		hub:      hub,
		metrics:  metrics,
		logger:   logger.With().Str("component", "http").Logger(),
		config:   config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	// Metrics and the WebSocket stream bypass the JSON middleware.
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.hub.Serve).Methods(http.MethodGet)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)
	api.HandleFunc("/progress", s.handlers.Progress).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.handlers.Projects).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.handlers.Project).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/mark", s.handlers.SetMark).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", s.handlers.RemoveProject).Methods(http.MethodDelete)
	api.HandleFunc("/experiences/{id}/toggle", s.handlers.ToggleExperience).Methods(http.MethodPost)
	api.HandleFunc("/experiences/{id}/mark", s.handlers.SetExperienceMark).Methods(http.MethodPut)
	api.HandleFunc("/coalition/{id}/toggle", s.handlers.ToggleCoalition).Methods(http.MethodPost)
	api.HandleFunc("/titles", s.handlers.Titles).Methods(http.MethodGet)
	api.HandleFunc("/titles/{id}", s.handlers.Title).Methods(http.MethodGet)
	api.HandleFunc("/sync", s.handlers.Sync).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.handlers.Reset).Methods(http.MethodPost)

	s.router.NotFoundHandler = jsonContentTypeMiddleware(http.HandlerFunc(s.handlers.NotFound))
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.metrics.RequestDuration.
			WithLabelValues(route, strconv.Itoa(wrapper.statusCode)).
			Observe(elapsed.Seconds())

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
