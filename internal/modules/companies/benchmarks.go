package companies

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/database"
)

// BenchmarkRepository stores per-industry average scores in the catalog
// database. Benchmarks are recomputed wholesale after batch evaluations.
type BenchmarkRepository struct {
	catalogDB *sql.DB
	log       zerolog.Logger
}

// NewBenchmarkRepository creates a benchmark repository.
func NewBenchmarkRepository(catalogDB *sql.DB, log zerolog.Logger) *BenchmarkRepository {
	return &BenchmarkRepository{
		catalogDB: catalogDB,
		log:       log.With().Str("repo", "benchmarks").Logger(),
	}
}

// For returns one benchmark cell, or nil when none has been computed.
func (r *BenchmarkRepository) For(industry, sizeClass string) (*IndustryBenchmark, error) {
	row := r.catalogDB.QueryRow(`
		SELECT industry, size_class, avg_e, avg_s, avg_g, avg_total, sample_count
		FROM industry_benchmarks WHERE industry = ? AND size_class = ?
	`, industry, sizeClass)

	var b IndustryBenchmark
	err := row.Scan(&b.Industry, &b.SizeClass, &b.AvgE, &b.AvgS, &b.AvgG, &b.AvgTotal, &b.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmark %s/%s: %w", industry, sizeClass, err)
	}
	return &b, nil
}

// ByIndustry returns the industry's benchmarks across size classes.
func (r *BenchmarkRepository) ByIndustry(industry string) ([]IndustryBenchmark, error) {
	rows, err := r.catalogDB.Query(`
		SELECT industry, size_class, avg_e, avg_s, avg_g, avg_total, sample_count
		FROM industry_benchmarks WHERE industry = ? ORDER BY size_class
	`, industry)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmarks for %s: %w", industry, err)
	}
	defer rows.Close()

	var benchmarks []IndustryBenchmark
	for rows.Next() {
		var b IndustryBenchmark
		if err := rows.Scan(&b.Industry, &b.SizeClass, &b.AvgE, &b.AvgS, &b.AvgG, &b.AvgTotal, &b.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark: %w", err)
		}
		benchmarks = append(benchmarks, b)
	}
	return benchmarks, rows.Err()
}

// Replace swaps all benchmark cells in one transaction.
func (r *BenchmarkRepository) Replace(benchmarks []IndustryBenchmark) error {
	err := database.WithTransaction(r.catalogDB, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM industry_benchmarks"); err != nil {
			return fmt.Errorf("failed to clear benchmarks: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339)
		for _, b := range benchmarks {
			_, err := tx.Exec(`
				INSERT INTO industry_benchmarks (industry, size_class, avg_e, avg_s, avg_g, avg_total, sample_count, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, b.Industry, b.SizeClass, b.AvgE, b.AvgS, b.AvgG, b.AvgTotal, b.SampleCount, now)
			if err != nil {
				return fmt.Errorf("failed to insert benchmark %s/%s: %w", b.Industry, b.SizeClass, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Int("cells", len(benchmarks)).Msg("Replaced industry benchmarks")
	return nil
}
