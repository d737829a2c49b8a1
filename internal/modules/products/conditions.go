package products

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/esgrade/internal/domain"
)

type conditionKind int

const (
	kindCurrentScore conditionKind = iota
	kindCurrentGrade
	kindProjectedScore
)

type conditionSpec struct {
	kind conditionKind

	// pillar selects the compared metric; empty means the composite total.
	pillar domain.Pillar

	// minimum makes the threshold a floor (>=); otherwise a ceiling (<=).
	minimum bool
}

// conditionRegistry fixes the semantics of every legal condition name.
// Matching never infers behavior from a name; an unlisted name is a
// catalog configuration error.
var conditionRegistry = map[string]conditionSpec{
	"min_e_score":     {kind: kindCurrentScore, pillar: domain.PillarEnvironmental, minimum: true},
	"min_s_score":     {kind: kindCurrentScore, pillar: domain.PillarSocial, minimum: true},
	"min_g_score":     {kind: kindCurrentScore, pillar: domain.PillarGovernance, minimum: true},
	"min_total_score": {kind: kindCurrentScore, minimum: true},
	"max_total_score": {kind: kindCurrentScore, minimum: false},
	"min_grade":       {kind: kindCurrentGrade, minimum: true},
	"max_grade":       {kind: kindCurrentGrade, minimum: false},

	"projected_e_score":     {kind: kindProjectedScore, pillar: domain.PillarEnvironmental, minimum: true},
	"projected_s_score":     {kind: kindProjectedScore, pillar: domain.PillarSocial, minimum: true},
	"projected_g_score":     {kind: kindProjectedScore, pillar: domain.PillarGovernance, minimum: true},
	"projected_total_score": {kind: kindProjectedScore, minimum: true},
}

// ConditionNames returns every legal condition name, sorted.
func ConditionNames() []string {
	names := make([]string, 0, len(conditionRegistry))
	for name := range conditionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// satisfied evaluates the condition against the current breakdown and the
// optional forecast. Projected conditions without a forecast fail.
func (c Condition) satisfied(b domain.ScoreBreakdown, forecast *domain.ForecastResult) bool {
	spec, ok := conditionRegistry[c.Name]
	if !ok {
		return false
	}

	switch spec.kind {
	case kindCurrentScore:
		value := b.Total
		if spec.pillar != "" {
			value = b.Metric(spec.pillar)
		}
		if spec.minimum {
			return value >= c.Threshold
		}
		return value <= c.Threshold

	case kindCurrentGrade:
		have, want := b.Grade.Rank(), c.Grade.Rank()
		if have < 0 || want < 0 {
			return false
		}
		if spec.minimum {
			return have <= want
		}
		return have >= want

	case kindProjectedScore:
		if forecast == nil {
			return false
		}
		return projectedValue(*forecast, spec.pillar, c.Aggregation) >= c.Threshold
	}

	return false
}

// projectedValue reads a forecast metric under the condition's aggregation
// mode.
func projectedValue(f domain.ForecastResult, pillar domain.Pillar, aggregation string) float64 {
	if pillar != "" {
		tr := f.Metric(pillar)
		if aggregation == AggregationAverage {
			return tr.Average()
		}
		return tr.Final()
	}

	if aggregation == AggregationAverage {
		if f.Horizon == 0 {
			return 0
		}
		sum := 0.0
		for i := 0; i < f.Horizon; i++ {
			sum += f.TotalAt(i)
		}
		return sum / float64(f.Horizon)
	}
	return f.TotalAt(f.Horizon - 1)
}

// Validate checks the product against the condition registry. Violations
// are ConfigurationErrors: they mean the catalog itself is broken and must
// fail the load, never a single evaluation.
func (p ProductSpec) Validate() error {
	if p.ID == "" {
		return domain.ConfigurationError{
			Component: "product catalog",
			Message:   fmt.Sprintf("product %q has no id", p.Name),
		}
	}
	if math.IsNaN(p.BaseRate) || math.IsInf(p.BaseRate, 0) || p.BaseRate < 0 {
		return domain.ConfigurationError{
			Component: "product catalog",
			Message:   fmt.Sprintf("product %s has invalid base rate %v", p.ID, p.BaseRate),
		}
	}

	for _, c := range p.Conditions {
		spec, ok := conditionRegistry[c.Name]
		if !ok {
			return domain.ConfigurationError{
				Component: "product catalog",
				Message:   fmt.Sprintf("product %s uses unknown condition %q", p.ID, c.Name),
			}
		}

		switch spec.kind {
		case kindCurrentGrade:
			if !c.Grade.Known() {
				return domain.ConfigurationError{
					Component: "product catalog",
					Message:   fmt.Sprintf("product %s condition %s has unknown grade %q", p.ID, c.Name, c.Grade),
				}
			}
		default:
			if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
				return domain.ConfigurationError{
					Component: "product catalog",
					Message:   fmt.Sprintf("product %s condition %s has non-finite threshold", p.ID, c.Name),
				}
			}
		}

		if spec.kind == kindProjectedScore {
			switch c.Aggregation {
			case "", AggregationFinal, AggregationAverage:
			default:
				return domain.ConfigurationError{
					Component: "product catalog",
					Message:   fmt.Sprintf("product %s condition %s has unknown aggregation %q", p.ID, c.Name, c.Aggregation),
				}
			}
		} else if c.Aggregation != "" {
			return domain.ConfigurationError{
				Component: "product catalog",
				Message:   fmt.Sprintf("product %s condition %s does not take an aggregation mode", p.ID, c.Name),
			}
		}
	}

	return nil
}

// ValidateCatalog checks every product and rejects duplicate ids.
func ValidateCatalog(catalog []ProductSpec) error {
	seen := make(map[string]bool, len(catalog))
	for _, p := range catalog {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] {
			return domain.ConfigurationError{
				Component: "product catalog",
				Message:   fmt.Sprintf("duplicate product id %s", p.ID),
			}
		}
		seen[p.ID] = true
	}
	return nil
}
