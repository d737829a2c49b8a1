package pipeline

import (
	"fmt"
	"sort"

	"github.com/aristath/esgrade/internal/modules/companies"
	"github.com/aristath/esgrade/pkg/formulas"
)

// RefreshBenchmarks recomputes the per-industry average scores from each
// company's latest evaluation and swaps the benchmark table wholesale.
// Companies that have never been evaluated contribute nothing.
func (s *Service) RefreshBenchmarks() ([]companies.IndustryBenchmark, error) {
	catalog, err := s.companies.All()
	if err != nil {
		return nil, err
	}

	type cell struct {
		e, soc, g, total float64
		n                int
	}
	cells := make(map[[2]string]*cell)

	for _, company := range catalog {
		latest, err := s.evaluations.Latest(company.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest evaluation for %s: %w", company.ID, err)
		}
		if latest == nil {
			continue
		}

		key := [2]string{company.Industry, company.SizeClass}
		c := cells[key]
		if c == nil {
			c = &cell{}
			cells[key] = c
		}
		c.e += latest.Breakdown.E
		c.soc += latest.Breakdown.S
		c.g += latest.Breakdown.G
		c.total += latest.Breakdown.Total
		c.n++
	}

	benchmarks := make([]companies.IndustryBenchmark, 0, len(cells))
	for key, c := range cells {
		n := float64(c.n)
		benchmarks = append(benchmarks, companies.IndustryBenchmark{
			Industry:    key[0],
			SizeClass:   key[1],
			AvgE:        formulas.Round2(c.e / n),
			AvgS:        formulas.Round2(c.soc / n),
			AvgG:        formulas.Round2(c.g / n),
			AvgTotal:    formulas.Round2(c.total / n),
			SampleCount: c.n,
		})
	}
	sort.Slice(benchmarks, func(i, j int) bool {
		if benchmarks[i].Industry != benchmarks[j].Industry {
			return benchmarks[i].Industry < benchmarks[j].Industry
		}
		return benchmarks[i].SizeClass < benchmarks[j].SizeClass
	})

	if err := s.benchmarks.Replace(benchmarks); err != nil {
		return nil, err
	}

	s.log.Info().Int("cells", len(benchmarks)).Msg("Industry benchmarks refreshed")
	return benchmarks, nil
}
