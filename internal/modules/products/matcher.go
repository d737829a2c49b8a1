package products

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/pkg/formulas"
)

// Matcher evaluates the product catalog against a company's current and
// projected scores. It holds no state; catalogs arrive with each call.
type Matcher struct {
	log zerolog.Logger
}

// NewMatcher creates a product matcher.
func NewMatcher(log zerolog.Logger) *Matcher {
	return &Matcher{
		log: log.With().Str("component", "product_matcher").Logger(),
	}
}

// Match returns one result per active catalog product, ordered by effective
// rate ascending with ties broken by product id. Ineligible products stay
// in the result with their failed conditions listed. Projected conditions
// fail when forecast is nil; the failure is recorded, never skipped.
// Rates carry two decimals.
func (m *Matcher) Match(breakdown domain.ScoreBreakdown, forecast *domain.ForecastResult, catalog []ProductSpec) []MatchResult {
	results := make([]MatchResult, 0, len(catalog))

	for _, product := range catalog {
		if !product.Active {
			continue
		}

		var failed []string
		for _, c := range product.Conditions {
			if !c.satisfied(breakdown, forecast) {
				failed = append(failed, c.Name)
			}
		}
		sort.Strings(failed)

		eligible := len(failed) == 0
		discount := 0.0
		if eligible && product.ESGDiscount {
			discount = breakdown.DiscountPct
		}

		results = append(results, MatchResult{
			ProductID:        product.ID,
			ProductName:      product.Name,
			Eligible:         eligible,
			FailedConditions: failed,
			BaseRate:         formulas.Round2(product.BaseRate),
			DiscountApplied:  formulas.Round2(discount),
			EffectiveRate:    formulas.Round2(product.BaseRate - discount),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].EffectiveRate != results[j].EffectiveRate {
			return results[i].EffectiveRate < results[j].EffectiveRate
		}
		return results[i].ProductID < results[j].ProductID
	})

	eligibleCount := 0
	for _, r := range results {
		if r.Eligible {
			eligibleCount++
		}
	}
	m.log.Debug().
		Str("grade", string(breakdown.Grade)).
		Int("products", len(results)).
		Int("eligible", eligibleCount).
		Bool("forecast", forecast != nil).
		Msg("Matched product catalog")

	return results
}
