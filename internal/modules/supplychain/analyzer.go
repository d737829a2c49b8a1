// Package supplychain aggregates supplier-level emissions and ESG risk
// into the Scope-3 estimate and score penalty consumed by scoring.
package supplychain

import (
	"fmt"
	"math"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/pkg/formulas"
)

// Config holds the analyzer's policy constants. They are fixed at
// construction, never derived per call.
type Config struct {
	// TargetThreshold is the ESG score suppliers are expected to meet.
	// Shortfalls below it propagate as risk.
	TargetThreshold float64

	// RiskPenaltyScale converts the weighted ESG deficit into score
	// penalty points.
	RiskPenaltyScale float64
}

// DefaultConfig returns the policy defaults.
func DefaultConfig() Config {
	return Config{TargetThreshold: 70.0, RiskPenaltyScale: 0.5}
}

// Analyzer computes supply-chain rollups. Stateless; safe for concurrent
// use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer validates the policy constants once.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.TargetThreshold == 0 && cfg.RiskPenaltyScale == 0 {
		cfg = DefaultConfig()
	}
	if cfg.TargetThreshold < 0 || cfg.TargetThreshold > 100 {
		return nil, domain.ConfigurationError{
			Component: "supply chain analyzer",
			Message:   fmt.Sprintf("target threshold %.1f outside [0,100]", cfg.TargetThreshold),
		}
	}
	if cfg.RiskPenaltyScale <= 0 {
		return nil, domain.ConfigurationError{
			Component: "supply chain analyzer",
			Message:   "risk penalty scale must be positive",
		}
	}
	return &Analyzer{cfg: cfg}, nil
}

// Aggregate rolls a supplier set up into a Scope-3 emissions estimate and
// a risk penalty in [0,100] score space.
//
// Spend weights are renormalized to sum to 1 regardless of what the
// caller supplied; an all-zero weight set falls back to equal weighting.
// The result depends only on the mathematical weighted sums, so any
// permutation of the same suppliers aggregates identically. An empty set
// yields a zero aggregate.
func (a *Analyzer) Aggregate(suppliers []domain.SupplierRecord) (domain.ScopeAggregate, error) {
	if len(suppliers) == 0 {
		return domain.ScopeAggregate{}, nil
	}

	if err := a.validate(suppliers); err != nil {
		return domain.ScopeAggregate{}, err
	}

	weights := normalizedWeights(suppliers)

	var scope3, risk float64
	for i, s := range suppliers {
		scope3 += weights[i] * s.Emissions
		risk += weights[i] * math.Max(0, a.cfg.TargetThreshold-s.ESGScore)
	}
	risk = formulas.Clamp(risk*a.cfg.RiskPenaltyScale, 0, 100)

	return domain.ScopeAggregate{
		Scope3Emissions: formulas.Round2(scope3),
		RiskScore:       formulas.Round2(risk),
		SupplierCount:   len(suppliers),
	}, nil
}

func (a *Analyzer) validate(suppliers []domain.SupplierRecord) error {
	for _, s := range suppliers {
		switch {
		case math.IsNaN(s.Emissions) || math.IsInf(s.Emissions, 0) || s.Emissions < 0:
			return supplierErr(s, "emissions", "must be a non-negative finite number")
		case math.IsNaN(s.ESGScore) || s.ESGScore < 0 || s.ESGScore > 100:
			return supplierErr(s, "esg_score", "must be within [0,100]")
		case math.IsNaN(s.SpendWeight) || math.IsInf(s.SpendWeight, 0) || s.SpendWeight < 0:
			return supplierErr(s, "spend_weight", "must be a non-negative finite number")
		}
	}
	return nil
}

func supplierErr(s domain.SupplierRecord, field, msg string) error {
	subject := s.Name
	if subject == "" {
		subject = s.ID
	}
	return domain.ValidationError{Subject: subject, Field: field, Message: msg}
}

// normalizedWeights returns spend weights scaled to sum to 1. When every
// caller weight is zero the suppliers weigh equally.
func normalizedWeights(suppliers []domain.SupplierRecord) []float64 {
	weights := make([]float64, len(suppliers))

	var total float64
	for _, s := range suppliers {
		total += s.SpendWeight
	}

	if total <= 0 {
		equal := 1.0 / float64(len(suppliers))
		for i := range weights {
			weights[i] = equal
		}
		return weights
	}

	for i, s := range suppliers {
		weights[i] = s.SpendWeight / total
	}
	return weights
}
