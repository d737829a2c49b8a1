// Package domain provides core domain models and types.
package domain

// Pillar identifies one of the three scored sustainability dimensions.
type Pillar string

const (
	PillarEnvironmental Pillar = "E"
	PillarSocial        Pillar = "S"
	PillarGovernance    Pillar = "G"
)

// Pillars lists the scored dimensions in canonical order.
var Pillars = []Pillar{PillarEnvironmental, PillarSocial, PillarGovernance}

// Grade is the ordinal sustainability grade derived from the total score.
type Grade string

const (
	GradeAPlus  Grade = "A+"
	GradeA      Grade = "A"
	GradeAMinus Grade = "A-"
	GradeBPlus  Grade = "B+"
	GradeB      Grade = "B"
	GradeBMinus Grade = "B-"
	GradeC      Grade = "C"
)

// gradeOrder lists grades best-first. Rank comparisons use positions in
// this slice, never string comparison.
var gradeOrder = []Grade{GradeAPlus, GradeA, GradeAMinus, GradeBPlus, GradeB, GradeBMinus, GradeC}

// Rank returns the grade's position in the best-first ordering (0 = A+).
// Unknown grades return -1.
func (g Grade) Rank() int {
	for i, known := range gradeOrder {
		if known == g {
			return i
		}
	}
	return -1
}

// Known reports whether the grade is one of the defined grade labels.
func (g Grade) Known() bool {
	return g.Rank() >= 0
}

// AtLeast reports whether the grade is equal to or better than min.
// Unknown grades never satisfy a minimum.
func (g Grade) AtLeast(min Grade) bool {
	gr, mr := g.Rank(), min.Rank()
	if gr < 0 || mr < 0 {
		return false
	}
	return gr <= mr
}

// IndicatorRecord holds a company's raw sub-indicator values per pillar.
// Values are expected in the configured raw range and are normalized to
// [0,100] before aggregation.
type IndicatorRecord struct {
	Name          string             `json:"name"`
	Industry      string             `json:"industry"`
	SizeClass     string             `json:"size_class"`
	Environmental map[string]float64 `json:"environmental"`
	Social        map[string]float64 `json:"social"`
	Governance    map[string]float64 `json:"governance"`
}

// PillarIndicators returns the sub-indicator map for the given pillar.
func (r IndicatorRecord) PillarIndicators(p Pillar) map[string]float64 {
	switch p {
	case PillarEnvironmental:
		return r.Environmental
	case PillarSocial:
		return r.Social
	case PillarGovernance:
		return r.Governance
	}
	return nil
}

// ScoreBreakdown is the result of one scoring evaluation. It is immutable
// once created; callers receive it by value.
type ScoreBreakdown struct {
	E           float64 `json:"e_score"`
	S           float64 `json:"s_score"`
	G           float64 `json:"g_score"`
	Total       float64 `json:"total_score"`
	Grade       Grade   `json:"grade"`
	DiscountPct float64 `json:"discount_pct"`

	// MissingIndicators lists required sub-indicators absent from the
	// input record. They score as zero; they are never silently dropped.
	MissingIndicators []string `json:"missing_indicators,omitempty"`
}

// Metric returns the pillar sub-score for the given pillar.
func (b ScoreBreakdown) Metric(p Pillar) float64 {
	switch p {
	case PillarEnvironmental:
		return b.E
	case PillarSocial:
		return b.S
	case PillarGovernance:
		return b.G
	}
	return 0
}

// HistoricalPoint is one month of observed E/S/G scores.
type HistoricalPoint struct {
	YearMonth string  `json:"year_month"` // "2006-01"
	E         float64 `json:"e_score"`
	S         float64 `json:"s_score"`
	G         float64 `json:"g_score"`
}

// Metric returns the point's value for the given pillar.
func (p HistoricalPoint) Metric(pillar Pillar) float64 {
	switch pillar {
	case PillarEnvironmental:
		return p.E
	case PillarSocial:
		return p.S
	case PillarGovernance:
		return p.G
	}
	return 0
}

// HistoricalSeries is a chronologically ordered monthly E/S/G series for
// one company. No duplicate periods.
type HistoricalSeries []HistoricalPoint

// MetricValues extracts one pillar's values in series order.
func (s HistoricalSeries) MetricValues(pillar Pillar) []float64 {
	values := make([]float64, len(s))
	for i, point := range s {
		values[i] = point.Metric(pillar)
	}
	return values
}

// SupplierRecord describes one supplier feeding the Scope-3 aggregation.
type SupplierRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Tier        int     `json:"tier"`
	Location    string  `json:"location"`
	Emissions   float64 `json:"emissions"`    // tCO2e estimate
	ESGScore    float64 `json:"esg_score"`    // [0,100]
	SpendWeight float64 `json:"spend_weight"` // relative spend share, renormalized
}

// ScopeAggregate is the supply-chain rollup consumed by the score engine.
// Computed fresh per request from the caller's supplier set.
type ScopeAggregate struct {
	Scope3Emissions float64 `json:"scope3_emissions"` // weight-normalized tCO2e
	RiskScore       float64 `json:"risk_score"`       // [0,100] penalty space
	SupplierCount   int     `json:"supplier_count"`
}

// Band is a per-step confidence interval around a forecast value.
type Band struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns the band's width.
func (b Band) Width() float64 {
	return b.Upper - b.Lower
}

// Trajectory is one metric's forward path with confidence bands.
// len(Values) == len(Bands) == the requested horizon.
type Trajectory struct {
	Values []float64 `json:"values"`
	Bands  []Band    `json:"bands"`
}

// Final returns the last predicted value, or 0 for an empty trajectory.
func (t Trajectory) Final() float64 {
	if len(t.Values) == 0 {
		return 0
	}
	return t.Values[len(t.Values)-1]
}

// Average returns the mean of the predicted values, or 0 when empty.
func (t Trajectory) Average() float64 {
	if len(t.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range t.Values {
		sum += v
	}
	return sum / float64(len(t.Values))
}

// ForecastResult carries the per-metric forward trajectories for one
// company. Band widths never shrink as the step index grows.
type ForecastResult struct {
	Horizon int        `json:"horizon"`
	E       Trajectory `json:"e"`
	S       Trajectory `json:"s"`
	G       Trajectory `json:"g"`
}

// Metric returns the trajectory for the given pillar.
func (f ForecastResult) Metric(p Pillar) Trajectory {
	switch p {
	case PillarEnvironmental:
		return f.E
	case PillarSocial:
		return f.S
	case PillarGovernance:
		return f.G
	}
	return Trajectory{}
}

// TotalAt returns the weighted total score implied by the forecast at
// step i, using the fixed 30/35/35 pillar weights.
func (f ForecastResult) TotalAt(i int) float64 {
	if i < 0 || i >= len(f.E.Values) || i >= len(f.S.Values) || i >= len(f.G.Values) {
		return 0
	}
	return 0.30*f.E.Values[i] + 0.35*f.S.Values[i] + 0.35*f.G.Values[i]
}
