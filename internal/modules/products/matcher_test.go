package products

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/esgrade/internal/domain"
)

// gradedBreakdown mirrors a strong evaluation: E 80, S 70, G 90, total 80,
// grade A- with its 1.8%p discount.
func gradedBreakdown() domain.ScoreBreakdown {
	return domain.ScoreBreakdown{
		E: 80, S: 70, G: 90,
		Total:       80,
		Grade:       domain.GradeAMinus,
		DiscountPct: 1.8,
	}
}

func sampleCatalog() []ProductSpec {
	return []ProductSpec{
		{
			ID: "loan-green", Name: "Green Transition Loan",
			BaseRate: 3.2, ESGDiscount: true, Active: true,
			Conditions: []Condition{
				{Name: "min_e_score", Threshold: 75},
				{Name: "min_grade", Grade: domain.GradeBPlus},
			},
		},
		{
			ID: "loan-bridge", Name: "Working Capital Bridge",
			BaseRate: 4.1, Active: true,
			Conditions: []Condition{{Name: "min_total_score", Threshold: 60}},
		},
		{
			ID: "loan-outlook", Name: "Transition Outlook Loan",
			BaseRate: 2.9, ESGDiscount: true, Active: true,
			Conditions: []Condition{{Name: "projected_e_score", Threshold: 85}},
		},
		{
			ID: "deposit-starter", Name: "Starter Deposit",
			BaseRate: 1.9, Active: true,
		},
		{
			ID: "loan-legacy", Name: "Retired Product",
			BaseRate: 5.0, Active: false,
		},
	}
}

// flatForecast builds a forecast whose metrics hold the given values at
// every step.
func flatForecast(e, s, g float64, horizon int) *domain.ForecastResult {
	mk := func(v float64) domain.Trajectory {
		tr := domain.Trajectory{Values: make([]float64, horizon), Bands: make([]domain.Band, horizon)}
		for i := range tr.Values {
			tr.Values[i] = v
		}
		return tr
	}
	return &domain.ForecastResult{Horizon: horizon, E: mk(e), S: mk(s), G: mk(g)}
}

func TestMatcher_Match_WithoutForecast(t *testing.T) {
	m := NewMatcher(zerolog.Nop())

	results := m.Match(gradedBreakdown(), nil, sampleCatalog())
	require.Len(t, results, 4, "inactive products must not appear")

	byID := make(map[string]MatchResult, len(results))
	for _, r := range results {
		byID[r.ProductID] = r
	}

	green := byID["loan-green"]
	assert.True(t, green.Eligible)
	assert.Empty(t, green.FailedConditions)
	assert.Equal(t, 1.8, green.DiscountApplied)
	assert.Equal(t, 1.4, green.EffectiveRate, "discount applies on top of the base rate")

	bridge := byID["loan-bridge"]
	assert.True(t, bridge.Eligible)
	assert.Equal(t, 4.1, bridge.EffectiveRate, "products without the discount flag keep their base rate")
	assert.Equal(t, 0.0, bridge.DiscountApplied)

	outlook := byID["loan-outlook"]
	assert.False(t, outlook.Eligible, "projected conditions fail without a forecast")
	assert.Equal(t, []string{"projected_e_score"}, outlook.FailedConditions)
	assert.Equal(t, 2.9, outlook.EffectiveRate, "ineligible products keep their base rate")

	starter := byID["deposit-starter"]
	assert.True(t, starter.Eligible, "a product without conditions is always offerable")
}

func TestMatcher_Match_OrderedByEffectiveRate(t *testing.T) {
	m := NewMatcher(zerolog.Nop())

	results := m.Match(gradedBreakdown(), nil, sampleCatalog())
	require.Len(t, results, 4)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ProductID
	}
	assert.Equal(t, []string{"loan-green", "deposit-starter", "loan-outlook", "loan-bridge"}, ids)
}

func TestMatcher_Match_TiesBreakByProductID(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	catalog := []ProductSpec{
		{ID: "prod-b", Name: "B", BaseRate: 2.0, Active: true},
		{ID: "prod-a", Name: "A", BaseRate: 2.0, Active: true},
	}

	results := m.Match(gradedBreakdown(), nil, catalog)
	require.Len(t, results, 2)
	assert.Equal(t, "prod-a", results[0].ProductID)
	assert.Equal(t, "prod-b", results[1].ProductID)
}

func TestMatcher_Match_MinimumIsStrictAtBoundary(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	catalog := []ProductSpec{{
		ID: "loan-e75", Name: "E Floor", BaseRate: 3.0, Active: true,
		Conditions: []Condition{{Name: "min_e_score", Threshold: 75}},
	}}

	b := gradedBreakdown()
	b.E = 74.9
	results := m.Match(b, nil, catalog)
	require.Len(t, results, 1)
	assert.False(t, results[0].Eligible, "74.9 must not satisfy a 75 floor")
	assert.Equal(t, []string{"min_e_score"}, results[0].FailedConditions)

	b.E = 75
	results = m.Match(b, nil, catalog)
	assert.True(t, results[0].Eligible, "the floor itself qualifies")
}

func TestMatcher_Match_ForecastUnlocksProjectedConditions(t *testing.T) {
	m := NewMatcher(zerolog.Nop())

	results := m.Match(gradedBreakdown(), flatForecast(86, 70, 90, 6), sampleCatalog())

	byID := make(map[string]MatchResult, len(results))
	for _, r := range results {
		byID[r.ProductID] = r
	}
	outlook := byID["loan-outlook"]
	assert.True(t, outlook.Eligible)
	assert.Equal(t, 1.1, outlook.EffectiveRate)
	assert.Equal(t, "loan-outlook", results[0].ProductID, "the unlocked product now has the best rate")
}

func TestMatcher_Match_ProjectedAggregationModes(t *testing.T) {
	m := NewMatcher(zerolog.Nop())

	// E rises 80 -> 84 -> 88: final 88, horizon average 84.
	forecast := &domain.ForecastResult{
		Horizon: 3,
		E:       domain.Trajectory{Values: []float64{80, 84, 88}},
		S:       domain.Trajectory{Values: []float64{70, 70, 70}},
		G:       domain.Trajectory{Values: []float64{90, 90, 90}},
	}

	catalog := []ProductSpec{
		{
			ID: "final-85", Name: "Final Step", BaseRate: 3.0, Active: true,
			Conditions: []Condition{{Name: "projected_e_score", Threshold: 85}},
		},
		{
			ID: "avg-85", Name: "Horizon Average", BaseRate: 3.0, Active: true,
			Conditions: []Condition{{Name: "projected_e_score", Threshold: 85, Aggregation: AggregationAverage}},
		},
	}

	results := m.Match(gradedBreakdown(), forecast, catalog)
	byID := make(map[string]MatchResult, len(results))
	for _, r := range results {
		byID[r.ProductID] = r
	}

	assert.True(t, byID["final-85"].Eligible, "final step 88 clears the 85 floor")
	assert.False(t, byID["avg-85"].Eligible, "horizon average 84 does not")
	assert.Equal(t, []string{"projected_e_score"}, byID["avg-85"].FailedConditions)
}

func TestMatcher_Match_ProjectedTotalUsesPillarWeights(t *testing.T) {
	m := NewMatcher(zerolog.Nop())

	// Weighted total of flat 90/80/70 is 0.30*90 + 0.35*80 + 0.35*70 = 79.5.
	forecast := flatForecast(90, 80, 70, 4)
	catalog := []ProductSpec{
		{
			ID: "total-79", Name: "Total Floor 79", BaseRate: 3.0, Active: true,
			Conditions: []Condition{{Name: "projected_total_score", Threshold: 79}},
		},
		{
			ID: "total-80", Name: "Total Floor 80", BaseRate: 3.0, Active: true,
			Conditions: []Condition{{Name: "projected_total_score", Threshold: 80}},
		},
	}

	results := m.Match(gradedBreakdown(), forecast, catalog)
	byID := make(map[string]MatchResult, len(results))
	for _, r := range results {
		byID[r.ProductID] = r
	}

	assert.True(t, byID["total-79"].Eligible)
	assert.False(t, byID["total-80"].Eligible)
}

func TestMatcher_Match_GradeCeiling(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	catalog := []ProductSpec{{
		ID: "starter-fund", Name: "Improvement Starter", BaseRate: 3.8, Active: true,
		Conditions: []Condition{{Name: "max_grade", Grade: domain.GradeB}},
	}}

	strong := gradedBreakdown()
	results := m.Match(strong, nil, catalog)
	assert.False(t, results[0].Eligible, "an A- company is above the B ceiling")

	weak := domain.ScoreBreakdown{Total: 50, Grade: domain.GradeC, DiscountPct: 0.4}
	results = m.Match(weak, nil, catalog)
	assert.True(t, results[0].Eligible, "a C company sits under the ceiling")
}

func TestMatcher_Match_MaxTotalCeiling(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	catalog := []ProductSpec{{
		ID: "subsidy", Name: "Improvement Subsidy", BaseRate: 2.5, Active: true,
		Conditions: []Condition{{Name: "max_total_score", Threshold: 65}},
	}}

	b := gradedBreakdown()
	results := m.Match(b, nil, catalog)
	assert.False(t, results[0].Eligible)

	b.Total = 65
	results = m.Match(b, nil, catalog)
	assert.True(t, results[0].Eligible, "the ceiling itself qualifies")
}

func TestMatcher_Match_UnknownGradeFailsGradeConditions(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	catalog := []ProductSpec{{
		ID: "loan-graded", Name: "Graded Loan", BaseRate: 3.0, Active: true,
		Conditions: []Condition{{Name: "min_grade", Grade: domain.GradeC}},
	}}

	results := m.Match(domain.ScoreBreakdown{Total: 50}, nil, catalog)
	assert.False(t, results[0].Eligible, "a breakdown without a grade satisfies no grade condition")
}

func TestMatcher_Match_EmptyCatalog(t *testing.T) {
	m := NewMatcher(zerolog.Nop())

	results := m.Match(gradedBreakdown(), nil, nil)
	assert.Empty(t, results)
}

func TestProductSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		product ProductSpec
	}{
		{"missing id", ProductSpec{Name: "No ID", BaseRate: 3.0}},
		{"negative base rate", ProductSpec{ID: "p", Name: "P", BaseRate: -1}},
		{"unknown condition", ProductSpec{ID: "p", Name: "P", BaseRate: 3.0,
			Conditions: []Condition{{Name: "renewable_ratio", Threshold: 0.5}}}},
		{"unknown grade", ProductSpec{ID: "p", Name: "P", BaseRate: 3.0,
			Conditions: []Condition{{Name: "min_grade", Grade: "Z+"}}}},
		{"bad aggregation", ProductSpec{ID: "p", Name: "P", BaseRate: 3.0,
			Conditions: []Condition{{Name: "projected_e_score", Threshold: 80, Aggregation: "median"}}}},
		{"aggregation on current condition", ProductSpec{ID: "p", Name: "P", BaseRate: 3.0,
			Conditions: []Condition{{Name: "min_e_score", Threshold: 80, Aggregation: "final"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			require.Error(t, err)
			assert.True(t, domain.IsConfiguration(err), "expected configuration error, got %v", err)
		})
	}

	valid := sampleCatalog()[0]
	assert.NoError(t, valid.Validate())
}

func TestValidateCatalog_RejectsDuplicateIDs(t *testing.T) {
	catalog := []ProductSpec{
		{ID: "loan-1", Name: "First", BaseRate: 3.0},
		{ID: "loan-1", Name: "Second", BaseRate: 3.5},
	}

	err := ValidateCatalog(catalog)
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
	assert.Contains(t, err.Error(), "loan-1")
}

func TestConditionNames_CoversRegistry(t *testing.T) {
	names := ConditionNames()
	assert.Len(t, names, 11)
	assert.Contains(t, names, "min_e_score")
	assert.Contains(t, names, "projected_total_score")
	assert.IsIncreasing(t, names)
}

func TestMatcher_SimulateUpgrade(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	catalog := sampleCatalog()[:4]

	current := domain.ScoreBreakdown{E: 76, S: 70, G: 71, Total: 72, Grade: domain.GradeB, DiscountPct: 1.2}
	target := domain.ScoreBreakdown{E: 80, S: 78, G: 83, Total: 80.5, Grade: domain.GradeAMinus, DiscountPct: 1.8}

	sim := m.SimulateUpgrade(current, target, catalog)

	assert.Equal(t, domain.GradeB, sim.CurrentGrade)
	assert.Equal(t, domain.GradeAMinus, sim.TargetGrade)
	assert.Equal(t, 2, sim.CurrentEligible, "loan-green needs B+, loan-outlook needs a forecast")
	assert.Equal(t, 3, sim.TargetEligible)
	assert.Equal(t, []string{"loan-green"}, sim.NewProducts)
	assert.Equal(t, 1.9, sim.BestCurrentRate, "the starter deposit leads before the upgrade")
	assert.Equal(t, 1.4, sim.BestTargetRate, "the unlocked green loan leads after it")
	assert.Equal(t, 0.5, sim.RateImprovement)
}

func TestMatcher_SimulateUpgrade_NoEligibleProducts(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	catalog := []ProductSpec{{
		ID: "loan-elite", Name: "Elite Only", BaseRate: 2.0, Active: true,
		Conditions: []Condition{{Name: "min_grade", Grade: domain.GradeAPlus}},
	}}

	current := domain.ScoreBreakdown{Total: 50, Grade: domain.GradeC, DiscountPct: 0.4}
	target := domain.ScoreBreakdown{Total: 68, Grade: domain.GradeBMinus, DiscountPct: 0.8}

	sim := m.SimulateUpgrade(current, target, catalog)
	assert.Zero(t, sim.CurrentEligible)
	assert.Zero(t, sim.TargetEligible)
	assert.Empty(t, sim.NewProducts)
	assert.Zero(t, sim.RateImprovement)
}
