/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server and scheduler for access to services.
 */
package di

import (
	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/events"
	"github.com/aristath/esgrade/internal/modules/companies"
	"github.com/aristath/esgrade/internal/modules/features"
	"github.com/aristath/esgrade/internal/modules/forecast"
	"github.com/aristath/esgrade/internal/modules/pipeline"
	"github.com/aristath/esgrade/internal/modules/products"
	"github.com/aristath/esgrade/internal/modules/ratings"
	"github.com/aristath/esgrade/internal/modules/scoring"
	"github.com/aristath/esgrade/internal/modules/supplychain"
	"github.com/aristath/esgrade/internal/queue"
	"github.com/aristath/esgrade/internal/reliability"
	"github.com/aristath/esgrade/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * This is the single source of truth for all service instances.
 * The container is created by Wire() and handed to the HTTP server.
 *
 * Architecture:
 * - Databases: 4-database architecture (catalog, ratings, cache, history)
 * - Repositories: Data access layer (companies, products, evaluations, snapshots, models)
 * - Services: Business logic layer (scoring, supply chain, forecasting, matching, pipeline)
 * - Jobs: Cron-driven background work (nightly batch, WAL checkpoints, storage backups)
 *
 * All dependencies are injected via constructor injection.
 */
type Container struct {
	// Databases (4-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs
	CatalogDB *database.DB         // Reference data (companies, suppliers, products, benchmarks)
	RatingsDB *database.DB         // Immutable grading ledger (evaluations, monthly snapshots)
	CacheDB   *database.DB         // Ephemeral operational data (trained forecast models)
	HistoryDB *companies.HistoryDB // Monthly E/S/G score series, shared with collection tooling

	// Repositories - Data access layer
	CompanyRepo    *companies.Repository
	BenchmarkRepo  *companies.BenchmarkRepository
	ProductRepo    *products.Repository
	EvaluationRepo *ratings.Repository
	SnapshotRepo   *ratings.SnapshotRepository
	ModelRepo      *forecast.Repository

	// Services - Business logic layer
	EventBus       *events.Bus                     // Event bus for pub/sub
	EventManager   *events.Manager                 // Event manager (wraps bus)
	Analyzer       *supplychain.Analyzer           // Scope-3 supplier rollups
	Engine         *scoring.Engine                 // Weighted E/S/G scoring and grading
	FeatureBuilder *features.Builder               // Time-series feature construction
	Forecaster     *forecast.Forecaster            // Seeded ensemble trajectory models
	Matcher        *products.Matcher               // Rule-based product eligibility
	Pipeline       *pipeline.Service               // Full evaluation orchestration
	Importer       *companies.Importer             // JSON catalog ingestion
	Runner         *queue.Runner                   // Single-flight batch evaluations
	Maintenance    *reliability.MaintenanceService // WAL checkpoints, integrity, disk checks
	StorageClient  *reliability.StorageClient      // S3-compatible object store (optional)
	BackupService  *reliability.BackupService      // Cloud backup service (optional)
}

// JobInstances holds the scheduled jobs for manual triggering via the
// scheduler's RunNow.
type JobInstances struct {
	Scheduler         *scheduler.Scheduler
	NightlyEvaluation *scheduler.NightlyEvaluationJob
	WALCheckpoint     *scheduler.WALCheckpointJob
	StorageBackup     *scheduler.StorageBackupJob // nil unless backup credentials are configured
}
