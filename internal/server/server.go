// Package server provides the HTTP server and routing for the allocator bot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/quantfold/allocator-bot/internal/agent"
	"github.com/quantfold/allocator-bot/internal/config"
	"github.com/quantfold/allocator-bot/internal/store"
)

// Config holds server configuration
type Config struct {
	Log    zerolog.Logger
	Config *config.Config
	Agent  *agent.Agent
	Store  store.Store
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	agent     *agent.Agent
	store     store.Store
	startedAt time.Time
}

// allowedOrigins are the frontends permitted to call the agent.
var allowedOrigins = []string{
	"http://localhost",
	"http://localhost:1420",
	"http://localhost:5050",
	"https://pro.openbb.co",
	"https://pro.openbb.dev",
	"https://excel.openbb.co",
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		agent:     cfg.Agent,
		store:     cfg.Store,
		startedAt: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Config.Port),
		Handler: s.router,
	}

	return s
}

// setupMiddleware configures the shared middleware stack
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleInfo)
	s.router.Get("/agents.json", s.handleAgentDescriptor)

	// Data endpoints require an API key
	s.router.Group(func(r chi.Router) {
		r.Use(requireAPIKey(s.cfg.APIKeys))
		r.Get("/allocation_data", s.handleAllocationData)
		r.Get("/tasks", s.handleTasks)
	})

	s.router.Get("/api/system/status", s.handleSystemStatus)

	s.router.Post("/v1/query", s.handleQuery)
}

// Start begins listening for requests
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs each request with timing information
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}
