// Package companies manages the company catalog: reference records,
// supplier sets, monthly score history, and industry benchmarks.
package companies

import (
	"github.com/aristath/esgrade/internal/domain"
)

// Company is one catalog entry. Indicators hold the current raw
// sub-indicator values per pillar; the monthly score history lives in the
// history database.
type Company struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Industry      string             `json:"industry"`
	SizeClass     string             `json:"size_class"`
	Country       string             `json:"country,omitempty"`
	Environmental map[string]float64 `json:"environmental,omitempty"`
	Social        map[string]float64 `json:"social,omitempty"`
	Governance    map[string]float64 `json:"governance,omitempty"`
}

// Record converts the company to the scoring engine's input record.
func (c Company) Record() domain.IndicatorRecord {
	return domain.IndicatorRecord{
		Name:          c.Name,
		Industry:      c.Industry,
		SizeClass:     c.SizeClass,
		Environmental: c.Environmental,
		Social:        c.Social,
		Governance:    c.Governance,
	}
}

// IndustryBenchmark is the average evaluated score for one industry and
// size class, recomputed after batch runs.
type IndustryBenchmark struct {
	Industry    string  `json:"industry"`
	SizeClass   string  `json:"size_class"`
	AvgE        float64 `json:"avg_e"`
	AvgS        float64 `json:"avg_s"`
	AvgG        float64 `json:"avg_g"`
	AvgTotal    float64 `json:"avg_total"`
	SampleCount int     `json:"sample_count"`
}
