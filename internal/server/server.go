// Package server provides the HTTP API for the grading service.
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

	"github.com/aristath/esgrade/internal/config"
	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/events"
	"github.com/aristath/esgrade/internal/modules/companies"
	"github.com/aristath/esgrade/internal/modules/pipeline"
	"github.com/aristath/esgrade/internal/modules/products"
	"github.com/aristath/esgrade/internal/modules/ratings"
	"github.com/aristath/esgrade/internal/queue"
)

// Config carries everything the server needs.
type Config struct {
	Log        zerolog.Logger
	Cfg        *config.Config
	CatalogDB  *database.DB
	RatingsDB  *database.DB
	CacheDB    *database.DB
	Companies  *companies.Repository
	Benchmarks *companies.BenchmarkRepository
	Products   *products.Repository
	Ratings    *ratings.Repository
	Snapshots  *ratings.SnapshotRepository
	Pipeline   *pipeline.Service
	Runner     *queue.Runner
	EventBus   *events.Bus
}

// Server is the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	catalogDB      *database.DB
	ratingsDB      *database.DB
	cacheDB        *database.DB
	companies      *companies.Repository
	benchmarks     *companies.BenchmarkRepository
	products       *products.Repository
	ratings        *ratings.Repository
	snapshots      *ratings.SnapshotRepository
	pipeline       *pipeline.Service
	runner         *queue.Runner
	eventsHandler  *EventsHandler
	systemHandlers *SystemHandlers
}

// New creates the HTTP server with middleware and routes wired.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Cfg,
		catalogDB:  cfg.CatalogDB,
		ratingsDB:  cfg.RatingsDB,
		cacheDB:    cfg.CacheDB,
		companies:  cfg.Companies,
		benchmarks: cfg.Benchmarks,
		products:   cfg.Products,
		ratings:    cfg.Ratings,
		snapshots:  cfg.Snapshots,
		pipeline:   cfg.Pipeline,
		runner:     cfg.Runner,
	}
	s.eventsHandler = NewEventsHandler(cfg.EventBus, cfg.Log)
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Cfg.DataDir, map[string]*database.DB{
		"catalog": cfg.CatalogDB,
		"ratings": cfg.RatingsDB,
		"cache":   cfg.CacheDB,
	})

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(api chi.Router) {
		api.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			r.Get("/health", s.handleHealth)
			r.Get("/system", s.systemHandlers.HandleSystem)

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", s.handleListCompanies)
				r.Route("/{companyID}", func(r chi.Router) {
					r.Get("/", s.handleGetCompany)
					r.Post("/evaluate", s.handleEvaluate)
					r.Get("/evaluation", s.handleLatestEvaluation)
					r.Get("/forecast", s.handleForecast)
					r.Get("/recommendations", s.handleRecommendations)
					r.Get("/snapshots", s.handleSnapshots)
				})
			})

			r.Get("/products", s.handleListProducts)
			r.Get("/benchmarks/{industry}", s.handleBenchmarks)

			r.Post("/evaluations", s.handleStartBatch)
			r.Get("/evaluations", s.handleListBatches)
			r.Get("/evaluations/{runID}", s.handleBatchStatus)
		})

		// The event stream lives outside the timeout group: a WebSocket
		// stays open far longer than any request budget.
		api.Get("/events", s.eventsHandler.ServeHTTP)
	})
}

// Start begins listening for requests. Blocks until shutdown or failure.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	s.eventsHandler.CloseAll()
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
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
