package testing

import (
	"fmt"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/modules/companies"
	"github.com/aristath/esgrade/internal/modules/products"
)

// NewCompanyFixtures returns a small graded universe: a strong performer,
// a mid-table manufacturer, and a laggard.
func NewCompanyFixtures() []companies.Company {
	return []companies.Company{
		{
			ID:        "com-nordwind",
			Name:      "Nordwind Energi AS",
			Industry:  "energy",
			SizeClass: "large",
			Country:   "NO",
			Environmental: map[string]float64{
				"carbon_emissions": 88,
				"renewable_energy": 92,
			},
			Social: map[string]float64{
				"employee_satisfaction": 81,
				"community_investment":  77,
			},
			Governance: map[string]float64{
				"board_independence": 90,
				"transparency_score": 86,
			},
		},
		{
			ID:        "com-plainscore",
			Name:      "Plainscore Works GmbH",
			Industry:  "manufacturing",
			SizeClass: "mid",
			Country:   "DE",
			Environmental: map[string]float64{
				"carbon_emissions": 58,
				"renewable_energy": 49,
			},
			Social: map[string]float64{
				"employee_satisfaction": 65,
				"community_investment":  52,
			},
			Governance: map[string]float64{
				"board_independence": 61,
				"transparency_score": 70,
			},
		},
		{
			ID:        "com-gravel",
			Name:      "Gravel & Sons Ltd",
			Industry:  "manufacturing",
			SizeClass: "small",
			Country:   "GB",
			Environmental: map[string]float64{
				"carbon_emissions": 31,
				"renewable_energy": 22,
			},
			Social: map[string]float64{
				"employee_satisfaction": 44,
				"community_investment":  35,
			},
			Governance: map[string]float64{
				"board_independence": 40,
				"transparency_score": 38,
			},
		},
	}
}

// NewSupplierFixtures returns a two-tier supply chain for a company.
func NewSupplierFixtures() []domain.SupplierRecord {
	return []domain.SupplierRecord{
		{ID: "sup-delta", Name: "Delta Parts", Tier: 1, Location: "PL", Emissions: 840, ESGScore: 62, SpendWeight: 0.6},
		{ID: "sup-omni", Name: "Omni Logistics", Tier: 1, Location: "NL", Emissions: 310, ESGScore: 71, SpendWeight: 0.3},
		{ID: "sup-micro", Name: "Micro Castings", Tier: 2, Location: "CZ", Emissions: 95, ESGScore: 48, SpendWeight: 0.1},
	}
}

// NewHistoryFixture returns months of gently improving scores starting at
// 2024-01. Values stay well inside [0,100].
func NewHistoryFixture(months int) domain.HistoricalSeries {
	series := make(domain.HistoricalSeries, 0, months)
	for i := 0; i < months; i++ {
		series = append(series, domain.HistoricalPoint{
			YearMonth: fmt.Sprintf("%04d-%02d", 2024+i/12, i%12+1),
			E:         60 + float64(i%6),
			S:         63 + float64(i%4),
			G:         66 + float64(i%5),
		})
	}
	return series
}

// NewProductFixtures returns a catalog with one discounted green loan and
// one elite product most companies fail to reach.
func NewProductFixtures() []products.ProductSpec {
	return []products.ProductSpec{
		{
			ID:          "loan-green",
			Name:        "Green Transition Loan",
			Provider:    "Alpine Kredit",
			BaseRate:    5.0,
			ESGDiscount: true,
			Conditions: []products.Condition{
				{Name: "min_grade", Grade: "B"},
			},
			Active: true,
		},
		{
			ID:          "loan-elite",
			Name:        "Sustainability Leader Facility",
			Provider:    "Alpine Kredit",
			BaseRate:    3.5,
			ESGDiscount: true,
			Conditions: []products.Condition{
				{Name: "min_grade", Grade: "A+"},
			},
			Active: true,
		},
	}
}
