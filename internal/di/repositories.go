// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/modules/companies"
	"github.com/aristath/esgrade/internal/modules/forecast"
	"github.com/aristath/esgrade/internal/modules/products"
	"github.com/aristath/esgrade/internal/modules/ratings"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Company repository (needs catalogDB)
	container.CompanyRepo = companies.NewRepository(
		container.CatalogDB.Conn(),
		log,
	)

	// Industry benchmark repository (needs catalogDB)
	container.BenchmarkRepo = companies.NewBenchmarkRepository(
		container.CatalogDB.Conn(),
		log,
	)

	// Product repository (needs catalogDB)
	container.ProductRepo = products.NewRepository(
		container.CatalogDB.Conn(),
		log,
	)

	// Evaluation repository (needs ratingsDB)
	container.EvaluationRepo = ratings.NewRepository(
		container.RatingsDB.Conn(),
		log,
	)

	// Monthly grade snapshot repository (needs ratingsDB)
	container.SnapshotRepo = ratings.NewSnapshotRepository(
		container.RatingsDB.Conn(),
		log,
	)

	// Trained model repository (needs cacheDB)
	container.ModelRepo = forecast.NewRepository(
		container.CacheDB.Conn(),
		log,
	)

	log.Info().Msg("All repositories initialized")

	return nil
}
