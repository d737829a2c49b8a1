// Package main is the entry point for the esgrade ESG credit-grading service.
// The service scores corporate ESG indicator sets into letter grades and
// financing discounts, rolls supplier emissions up into a Scope-3 penalty,
// projects grade trajectories with confidence bands, and matches companies
// against a catalog of sustainability-linked financial products.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/config"
	"github.com/aristath/esgrade/internal/di"
	"github.com/aristath/esgrade/internal/events"
	"github.com/aristath/esgrade/internal/server"
	"github.com/aristath/esgrade/internal/version"
	"github.com/aristath/esgrade/pkg/logger"
)

// main is the application entry point. It orchestrates the startup sequence:
// 1. Loads configuration from environment variables (.env file)
// 2. Initializes the structured logger
// 3. Wires all dependencies via DI container (databases, repositories, services, jobs)
// 4. Imports the company and product catalogs when configured
// 5. Starts the cron scheduler (nightly evaluation, WAL checkpoints, cloud backup)
// 6. Starts the HTTP server for API endpoints
// 7. Waits for a shutdown signal and drains gracefully
//
// The application uses a 4-database architecture:
// - catalog.db: Companies, suppliers, products, industry benchmarks
// - ratings.db: Immutable evaluation ledger and monthly grade snapshots
// - cache.db: Serialized forecast model states keyed by data fingerprint
// - history.db: Monthly ESG score series, shared with external collection tooling
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Str("version", version.Version).Msg("Starting esgrade")

	// Wire all dependencies using DI container
	// This initializes databases, repositories, services, and scheduled jobs:
	// - Databases are initialized first (4-database architecture)
	// - Repositories are created with database connections
	// - Services are created with repository dependencies
	// - Cron jobs are registered against the configured schedules
	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Cleanup on exit: the batch runner stops before the databases close so
	// no evaluation is mid-write, and WAL checkpoints land on close.
	defer container.Close()

	// Import catalogs named in the environment. Benchmarks derive from the
	// catalog, so a fresh import invalidates whatever the table held before.
	if importCatalogs(cfg, container, log) > 0 {
		benchmarks, err := container.Pipeline.RefreshBenchmarks()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to refresh industry benchmarks after import")
		} else {
			log.Info().Int("industries", len(benchmarks)).Msg("Industry benchmarks refreshed")
		}
	}

	// Start the cron scheduler
	// Jobs were registered during wiring: the nightly catalog evaluation,
	// hourly WAL checkpoints, and the weekly cloud backup (when configured).
	jobs.Scheduler.Start()

	// Initialize HTTP server
	// The HTTP server provides REST API endpoints for:
	// - Company catalog and supplier data
	// - Evaluations (single company and catalog-wide batches)
	// - Grade forecasts and product recommendations
	// - Industry benchmarks and grade snapshot history
	// - System operations (health checks, runtime stats)
	// - Live event streaming over WebSocket
	srv := server.New(server.Config{
		Log:        log,
		Cfg:        cfg,
		CatalogDB:  container.CatalogDB,
		RatingsDB:  container.RatingsDB,
		CacheDB:    container.CacheDB,
		Companies:  container.CompanyRepo,
		Benchmarks: container.BenchmarkRepo,
		Products:   container.ProductRepo,
		Ratings:    container.EvaluationRepo,
		Snapshots:  container.SnapshotRepo,
		Pipeline:   container.Pipeline,
		Runner:     container.Runner,
		EventBus:   container.EventBus,
	})

	// Start server in goroutine
	// The HTTP server runs in a separate goroutine so the main thread can
	// block on the shutdown signal.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no new evaluation or backup starts while
	// the server drains. Stop blocks until running jobs finish.
	jobs.Scheduler.Stop()

	// Graceful shutdown
	// The HTTP server is given up to 10 seconds to finish in-flight requests.
	// WebSocket event streams are closed explicitly since hijacked
	// connections outlive the drain.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// importCatalogs loads the catalog files named in the configuration.
// Company and product catalogs may live in one file or two; each imported
// file emits a CATALOG_IMPORTED event with its counts. Returns the number
// of files imported.
func importCatalogs(cfg *config.Config, container *di.Container, log zerolog.Logger) int {
	imported := 0
	for _, path := range []string{cfg.CompanyCatalogPath, cfg.ProductCatalogPath} {
		if path == "" {
			continue
		}

		summary, err := container.Importer.ImportFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to import catalog")
		}

		container.EventManager.Emit("companies", &events.CatalogImportedData{
			Companies:     summary.Companies,
			Suppliers:     summary.Suppliers,
			HistoryPoints: summary.HistoryPoints,
			Products:      summary.Products,
		})

		log.Info().
			Str("path", path).
			Int("companies", summary.Companies).
			Int("suppliers", summary.Suppliers).
			Int("history_points", summary.HistoryPoints).
			Int("products", summary.Products).
			Msg("Catalog imported")
		imported++
	}
	return imported
}

// All dependency wiring is handled by di.Wire()
// The DI container initializes:
//   - internal/di/databases.go (database initialization)
//   - internal/di/repositories.go (repository creation)
//   - internal/di/services.go (service creation)
//   - internal/di/jobs.go (cron job registration)
//   - internal/di/wire.go (main orchestration)
