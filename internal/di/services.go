// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/config"
	"github.com/aristath/esgrade/internal/events"
	"github.com/aristath/esgrade/internal/modules/companies"
	"github.com/aristath/esgrade/internal/modules/features"
	"github.com/aristath/esgrade/internal/modules/forecast"
	"github.com/aristath/esgrade/internal/modules/pipeline"
	"github.com/aristath/esgrade/internal/modules/products"
	"github.com/aristath/esgrade/internal/modules/scoring"
	"github.com/aristath/esgrade/internal/modules/supplychain"
	"github.com/aristath/esgrade/internal/queue"
	"github.com/aristath/esgrade/internal/reliability"
)

// InitializeServices creates all services and stores them in the container
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// ==========================================
	// STEP 1: Event Bus and Manager
	// ==========================================

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// ==========================================
	// STEP 2: Grading Components
	// ==========================================

	analyzer, err := supplychain.NewAnalyzer(supplychain.Config{
		TargetThreshold:  cfg.SupplierTargetThreshold,
		RiskPenaltyScale: cfg.RiskPenaltyScale,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize supply-chain analyzer: %w", err)
	}
	container.Analyzer = analyzer

	engine, err := scoring.NewEngine(scoring.EngineConfig{})
	if err != nil {
		return fmt.Errorf("failed to initialize scoring engine: %w", err)
	}
	container.Engine = engine

	container.FeatureBuilder = features.NewBuilder()

	container.Forecaster = forecast.New(forecast.Config{
		Seed:         cfg.ForecastSeed,
		EnsembleSize: cfg.EnsembleSize,
	}, log)

	container.Matcher = products.NewMatcher(log)

	// ==========================================
	// STEP 3: Evaluation Pipeline
	// ==========================================

	container.Pipeline = pipeline.NewService(
		container.CompanyRepo,
		container.HistoryDB,
		container.BenchmarkRepo,
		container.Analyzer,
		container.Engine,
		container.FeatureBuilder,
		container.Forecaster,
		container.ModelRepo,
		container.ProductRepo,
		container.Matcher,
		container.EvaluationRepo,
		container.SnapshotRepo,
		container.EventManager,
		pipeline.Config{
			DefaultHorizon: cfg.DefaultHorizon,
			FitTimeout:     cfg.FitTimeout,
			Workers:        cfg.BatchWorkers,
		},
		log,
	)

	container.Importer = companies.NewImporter(
		container.CompanyRepo,
		container.HistoryDB,
		container.ProductRepo,
		log,
	)

	container.Runner = queue.NewRunner(container.Pipeline, log)

	// ==========================================
	// STEP 4: Reliability Services
	// ==========================================

	allDatabases := map[string]*sql.DB{
		"catalog": container.CatalogDB.Conn(),
		"ratings": container.RatingsDB.Conn(),
		"cache":   container.CacheDB.Conn(),
		"history": container.HistoryDB.Conn(),
	}
	container.Maintenance = reliability.NewMaintenanceService(allDatabases, cfg.DataDir, log)

	// Only initialize cloud backups when credentials are fully configured.
	// Trained models are reproducible from seed and history, so cache.db
	// stays out of the archive.
	if cfg.Backup.Enabled() {
		storageClient, err := reliability.NewStorageClient(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize storage client - cloud backup disabled")
		} else {
			container.StorageClient = storageClient
			container.BackupService = reliability.NewBackupService(
				storageClient,
				map[string]*sql.DB{
					"catalog": container.CatalogDB.Conn(),
					"ratings": container.RatingsDB.Conn(),
					"history": container.HistoryDB.Conn(),
				},
				cfg.DataDir,
				cfg.Backup.RetentionDays,
				container.EventManager,
				log,
			)
			log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backup services initialized")
		}
	} else {
		log.Debug().Msg("Backup credentials not configured - cloud backup disabled")
	}

	log.Info().Msg("All services initialized")

	return nil
}
