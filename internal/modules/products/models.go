// Package products matches companies against the financial product catalog
// and computes the rate benefits their sustainability grade unlocks.
package products

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/esgrade/internal/domain"
)

// Aggregation modes for projected conditions. Final reads the last horizon
// step, Average the mean over the whole horizon. An empty string means
// final.
const (
	AggregationFinal   = "final"
	AggregationAverage = "average"
)

// Condition is one eligibility rule on a product. Score conditions carry a
// Threshold, grade conditions a Grade, and projected conditions may carry
// an Aggregation mode. Names come from the fixed condition registry;
// anything else is rejected at catalog load.
type Condition struct {
	Name        string       `json:"name"`
	Threshold   float64      `json:"threshold,omitempty"`
	Grade       domain.Grade `json:"grade,omitempty"`
	Aggregation string       `json:"aggregation,omitempty"`
}

// ProductSpec is one catalog entry. Catalogs are read-only at evaluation
// time; eligibility is the conjunction of all listed conditions.
type ProductSpec struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`

	// BaseRate is the annual rate in percent before any grade discount.
	BaseRate float64 `json:"base_rate"`

	// ESGDiscount marks products whose rate improves with the grade
	// discount. Products without it keep BaseRate regardless of score;
	// their conditions still gate whether they are offered.
	ESGDiscount bool `json:"esg_discount"`

	MaxAmount  float64     `json:"max_amount,omitempty"`
	TermMonths int         `json:"term_months,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Active     bool        `json:"active"`
}

// MatchResult is one product's evaluation against a company.
// FailedConditions is empty exactly when Eligible is true.
type MatchResult struct {
	ProductID        string   `json:"product_id"`
	ProductName      string   `json:"product_name"`
	Eligible         bool     `json:"eligible"`
	FailedConditions []string `json:"failed_conditions,omitempty"`
	BaseRate         float64  `json:"base_rate"`
	DiscountApplied  float64  `json:"discount_applied"`
	EffectiveRate    float64  `json:"effective_rate"`
}

// LoanTerms is the amortization schedule summary for one product at one
// grade discount. All money fields are rounded to 2 places.
type LoanTerms struct {
	Principal      decimal.Decimal `json:"principal"`
	BaseRate       decimal.Decimal `json:"base_rate"`
	DiscountRate   decimal.Decimal `json:"discount_rate"`
	FinalRate      decimal.Decimal `json:"final_rate"`
	TermYears      int             `json:"term_years"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalPayment   decimal.Decimal `json:"total_payment"`
	TotalInterest  decimal.Decimal `json:"total_interest"`

	// SavingsVsBase is the interest saved against the same loan priced at
	// the undiscounted base rate.
	SavingsVsBase decimal.Decimal `json:"savings_vs_base"`
}

// UpgradeSimulation reports what a grade improvement would unlock.
type UpgradeSimulation struct {
	CurrentGrade    domain.Grade `json:"current_grade"`
	TargetGrade     domain.Grade `json:"target_grade"`
	CurrentEligible int          `json:"current_eligible"`
	TargetEligible  int          `json:"target_eligible"`

	// NewProducts lists ids of products eligible at the target grade but
	// not at the current one, sorted.
	NewProducts []string `json:"new_products,omitempty"`

	// BestCurrentRate and BestTargetRate are the lowest effective rates
	// among eligible products at each grade; RateImprovement is their
	// difference. All zero when either side has no eligible products.
	BestCurrentRate float64 `json:"best_current_rate"`
	BestTargetRate  float64 `json:"best_target_rate"`
	RateImprovement float64 `json:"rate_improvement"`
}
