// Package server provides the HTTP server and routing for the portfolio
// service.
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

	"github.com/bookman/portfolio-service/internal/config"
	"github.com/bookman/portfolio-service/internal/database"
	"github.com/bookman/portfolio-service/internal/events"
	"github.com/bookman/portfolio-service/internal/modules/performance"
	"github.com/bookman/portfolio-service/internal/modules/portfolio"
	"github.com/bookman/portfolio-service/internal/modules/pricing"
)

// Config holds server dependencies
type Config struct {
	Log                zerolog.Logger
	Config             *config.Config
	DB                 *database.DB
	Bus                *events.Bus
	PortfolioHandler   *portfolio.Handler
	PortfolioService   *portfolio.Service
	PricingHandler     *pricing.Handler
	PerformanceHandler *performance.Handler
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	db      *database.DB
	cfg     *config.Config
	started time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		db:      cfg.DB,
		cfg:     cfg.Config,
		started: time.Now(),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes(cfg)

	// No WriteTimeout: stream connections stay open indefinitely.
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the configured router, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware. The request timeout is applied
// per-route in setupRoutes: a global Timeout would cancel long-lived
// stream contexts.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.handleHealth)

	streamHandler := NewStreamHandler(cfg.Bus, cfg.PortfolioService, cfg.Log)
	timeout := middleware.Timeout(s.cfg.RequestTimeout)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/{portfolioID}/stream", streamHandler.HandlePortfolioStream)
			r.Get("/{portfolioID}/prices/stream", streamHandler.HandlePortfolioPriceStream)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				cfg.PortfolioHandler.Routes(r)
				r.Get("/{portfolioID}/performance", cfg.PerformanceHandler.HandleGetMetrics)
			})
		})

		r.Route("/prices", func(r chi.Router) {
			r.Get("/stream", streamHandler.HandlePriceStream)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				cfg.PricingHandler.Routes(r)
			})
		})

		r.With(timeout).Get("/system/status", s.handleSystemStatus)
	})
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

// loggingMiddleware logs HTTP requests
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
