// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/config"
	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/modules/companies"
)

// InitializeDatabases initializes all 4 databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. catalog.db - Reference data (companies, suppliers, products, benchmarks)
	catalogDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/catalog.db",
		Profile: database.ProfileStandard,
		Name:    "catalog",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog database: %w", err)
	}
	container.CatalogDB = catalogDB

	// 2. ratings.db - Immutable grading ledger (evaluations, monthly snapshots)
	ratingsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/ratings.db",
		Profile: database.ProfileLedger, // Maximum safety for the grading ledger
		Name:    "ratings",
	})
	if err != nil {
		catalogDB.Close()
		return nil, fmt.Errorf("failed to initialize ratings database: %w", err)
	}
	container.RatingsDB = ratingsDB

	// 3. cache.db - Ephemeral operational data (trained forecast models)
	cacheDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/cache.db",
		Profile: database.ProfileCache, // Maximum speed for ephemeral data
		Name:    "cache",
	})
	if err != nil {
		catalogDB.Close()
		ratingsDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	// Apply schemas (single source of truth)
	for _, db := range []*database.DB{catalogDB, ratingsDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			catalogDB.Close()
			ratingsDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	// 4. history.db - Monthly score series. Opened through its own helper:
	// the file is shared with external collection tooling and schema-ensured
	// on open rather than migrated.
	historyDB, err := companies.OpenHistoryDB(cfg.DataDir+"/history.db", log)
	if err != nil {
		catalogDB.Close()
		ratingsDB.Close()
		cacheDB.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
