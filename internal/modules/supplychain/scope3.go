package supplychain

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/pkg/formulas"
)

// emissionFactors holds the GHG Protocol category factors in tCO2e per
// monetary unit of activity.
var emissionFactors = map[string]float64{
	"purchased_goods":           0.5,
	"capital_goods":             0.3,
	"fuel_energy":               0.8,
	"transportation_upstream":   0.2,
	"waste":                     0.1,
	"business_travel":           0.15,
	"employee_commuting":        0.05,
	"leased_assets":             0.2,
	"transportation_downstream": 0.25,
	"product_use":               1.0,
	"product_eol":               0.15,
	"investments":               0.4,
}

// Scope3Categories lists the supported category names in factor order.
func Scope3Categories() []string {
	names := make([]string, 0, len(emissionFactors))
	for name := range emissionFactors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryEmission is one category's contribution to the Scope-3 total.
type CategoryEmission struct {
	Category  string  `json:"category"`
	Emissions float64 `json:"emissions"` // tCO2e
	Share     float64 `json:"share"`     // percent of total
}

// Scope3Report is a category-level Scope-3 emissions estimate.
type Scope3Report struct {
	Total      float64            `json:"total"` // tCO2e
	Categories []CategoryEmission `json:"categories"`

	// Hotspots holds the top emitting categories, largest first.
	Hotspots []CategoryEmission `json:"hotspots"`
}

// EstimateScope3 converts category activity amounts (monetary units) into
// a Scope-3 emissions estimate via the fixed category factors.
//
// Industry skews the factors the way sector averages do: manufacturing
// weights purchased goods and upstream transport 1.5x, finance weights
// investments 2x. Unknown industries apply no adjustment. Unknown
// category names are rejected rather than silently ignored.
func (a *Analyzer) EstimateScope3(industry string, activity map[string]float64) (Scope3Report, error) {
	var report Scope3Report

	for category, amount := range activity {
		if _, ok := emissionFactors[category]; !ok {
			return Scope3Report{}, domain.ValidationError{
				Subject: "scope3 activity",
				Field:   category,
				Message: "unknown emission category",
			}
		}
		if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
			return Scope3Report{}, domain.ValidationError{
				Subject: "scope3 activity",
				Field:   category,
				Message: "amount must be a non-negative finite number",
			}
		}
	}

	for _, category := range Scope3Categories() {
		amount, ok := activity[category]
		if !ok {
			continue
		}

		factor := emissionFactors[category] * industryFactorAdjustment(industry, category)
		emissions := amount * factor

		report.Categories = append(report.Categories, CategoryEmission{
			Category:  category,
			Emissions: formulas.Round2(emissions),
		})
		report.Total += emissions
	}
	report.Total = formulas.Round2(report.Total)

	if report.Total > 0 {
		for i := range report.Categories {
			report.Categories[i].Share = formulas.Round1(report.Categories[i].Emissions / report.Total * 100)
		}
	}

	hotspots := make([]CategoryEmission, len(report.Categories))
	copy(hotspots, report.Categories)
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Emissions != hotspots[j].Emissions {
			return hotspots[i].Emissions > hotspots[j].Emissions
		}
		return hotspots[i].Category < hotspots[j].Category
	})
	if len(hotspots) > 5 {
		hotspots = hotspots[:5]
	}
	report.Hotspots = hotspots

	return report, nil
}

// industryFactorAdjustment skews category factors for sectors whose
// supply chains concentrate emissions differently.
func industryFactorAdjustment(industry, category string) float64 {
	switch industry {
	case "manufacturing":
		if category == "purchased_goods" || category == "transportation_upstream" {
			return 1.5
		}
	case "finance":
		if category == "investments" {
			return 2.0
		}
	}
	return 1.0
}

// EmissionFactor returns the base factor for a category.
func EmissionFactor(category string) (float64, error) {
	factor, ok := emissionFactors[category]
	if !ok {
		return 0, fmt.Errorf("unknown emission category %q", category)
	}
	return factor, nil
}
