// Package server provides the HTTP server and routing for Frontier.
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

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/allocation"
	allocationhandlers "github.com/aristath/frontier/internal/modules/allocation/handlers"
	"github.com/aristath/frontier/internal/modules/historical"
	historicalhandlers "github.com/aristath/frontier/internal/modules/historical/handlers"
	optimizationhandlers "github.com/aristath/frontier/internal/modules/optimization/handlers"
	riskhandlers "github.com/aristath/frontier/internal/modules/risk/handlers"
	"github.com/aristath/frontier/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	Workers int

	// RunRate and RunBurst throttle optimization runs; RunRate <= 0 disables it.
	RunRate  float64
	RunBurst int

	Databases   []*database.DB
	Optimizer   optimizationhandlers.Runner
	Prices      *historical.PriceRepository
	Allocations *allocation.Repository
	Risk        riskhandlers.Summarizer

	// Jobs reports scheduled job state on /api/system/status.
	Jobs func() []scheduler.JobStatus
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg,
		systemHandlers: NewSystemHandlers(cfg.Databases, cfg.Workers, cfg.Jobs, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	var runLimit func(http.Handler) http.Handler
	if s.cfg.RunRate > 0 {
		runLimit = NewRateLimiter(s.cfg.RunRate, s.cfg.RunBurst, s.log).Middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

		if s.cfg.Optimizer != nil {
			optimizationhandlers.NewHandler(s.cfg.Optimizer, s.log).RegisterRoutes(r, runLimit)
		}
		if s.cfg.Prices != nil {
			historicalhandlers.NewHandler(s.cfg.Prices, s.log).RegisterRoutes(r)
		}
		if s.cfg.Allocations != nil {
			allocationhandlers.NewHandler(s.cfg.Allocations, s.log).RegisterRoutes(r)
		}
		if s.cfg.Risk != nil {
			riskhandlers.NewHandler(s.cfg.Risk, s.log).RegisterRoutes(r)
		}
	})
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
