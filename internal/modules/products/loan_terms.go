package products

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/aristath/esgrade/internal/domain"
)

// DefaultBaseRate is the reference annual rate in percent for products
// that do not quote their own.
const DefaultBaseRate = 3.5

var (
	one = decimal.NewFromInt(1)

	// pctPerMonth converts an annual percent rate to a monthly fraction.
	pctPerMonth = decimal.NewFromInt(1200)
)

// CalculateLoanTerms amortizes a principal over the term at the product's
// base rate minus the grade discount, using equal monthly payments. The
// discount is capped at the base rate so the final rate never goes
// negative. Savings compare total interest against the same loan priced at
// the undiscounted base rate.
func CalculateLoanTerms(product ProductSpec, discountPct float64, principal decimal.Decimal, termYears int) (LoanTerms, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return LoanTerms{}, domain.ValidationError{
			Subject: product.ID,
			Field:   "principal",
			Message: fmt.Sprintf("must be positive, got %s", principal),
		}
	}
	if termYears <= 0 {
		return LoanTerms{}, domain.ValidationError{
			Subject: product.ID,
			Field:   "term_years",
			Message: fmt.Sprintf("must be positive, got %d", termYears),
		}
	}
	if math.IsNaN(discountPct) || math.IsInf(discountPct, 0) || discountPct < 0 {
		return LoanTerms{}, domain.ValidationError{
			Subject: product.ID,
			Field:   "discount_pct",
			Message: fmt.Sprintf("must be a non-negative number, got %v", discountPct),
		}
	}

	base := decimal.NewFromFloat(product.BaseRate)
	if base.IsZero() {
		base = decimal.NewFromFloat(DefaultBaseRate)
	}
	discount := decimal.NewFromFloat(discountPct)
	if discount.GreaterThan(base) {
		discount = base
	}
	finalRate := base.Sub(discount)

	months := termYears * 12
	monthly := amortizedMonthlyPayment(principal, finalRate, months)
	total := monthly.Mul(decimal.NewFromInt(int64(months)))
	interest := total.Sub(principal)

	baseMonthly := amortizedMonthlyPayment(principal, base, months)
	baseInterest := baseMonthly.Mul(decimal.NewFromInt(int64(months))).Sub(principal)

	return LoanTerms{
		Principal:      principal.Round(2),
		BaseRate:       base.Round(2),
		DiscountRate:   discount.Round(2),
		FinalRate:      finalRate.Round(2),
		TermYears:      termYears,
		MonthlyPayment: monthly.Round(2),
		TotalPayment:   total.Round(2),
		TotalInterest:  interest.Round(2),
		SavingsVsBase:  baseInterest.Sub(interest).Round(2),
	}, nil
}

// amortizedMonthlyPayment computes the equal monthly payment
// P * r * (1+r)^n / ((1+r)^n - 1) with r the monthly rate fraction. A zero
// rate degrades to straight principal division.
func amortizedMonthlyPayment(principal, annualRatePct decimal.Decimal, months int) decimal.Decimal {
	n := decimal.NewFromInt(int64(months))
	if annualRatePct.IsZero() {
		return principal.Div(n)
	}

	r := annualRatePct.Div(pctPerMonth)
	growth := one.Add(r).Pow(n)
	return principal.Mul(r).Mul(growth).Div(growth.Sub(one))
}
