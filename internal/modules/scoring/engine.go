// Package scoring computes E/S/G pillar scores, the weighted composite
// total, and the grade/discount assignment for an enterprise.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/pkg/formulas"
)

// Raw sub-indicator values outside this range fail validation before any
// aggregation happens. Normalization itself never fails.
const (
	rawMin = 0.0
	rawMax = 100.0
)

// PillarWeights fixes the policy weighting of the three pillars.
type PillarWeights struct {
	E float64 `json:"e"`
	S float64 `json:"s"`
	G float64 `json:"g"`
}

// DefaultPillarWeights returns the 30/35/35 policy weighting.
func DefaultPillarWeights() PillarWeights {
	return PillarWeights{E: 0.30, S: 0.35, G: 0.35}
}

// validate rejects weights that are negative or do not sum to 1.
func (w PillarWeights) validate() error {
	if w.E < 0 || w.S < 0 || w.G < 0 {
		return domain.ConfigurationError{Component: "pillar weights", Message: "weights must be non-negative"}
	}
	if sum := w.E + w.S + w.G; math.Abs(sum-1.0) > 1e-9 {
		return domain.ConfigurationError{
			Component: "pillar weights",
			Message:   fmt.Sprintf("weights sum to %.6f, want 1.0", sum),
		}
	}
	return nil
}

// Total applies the weights to the three pillar scores.
func (w PillarWeights) Total(e, s, g float64) float64 {
	return w.E*e + w.S*s + w.G*g
}

// EngineConfig configures a score engine. Zero values fall back to the
// policy defaults.
type EngineConfig struct {
	Weights PillarWeights
	Scale   *GradeScale

	// Required, when set, fixes the indicator universe per pillar.
	// Indicators missing from a record count as zero and are flagged.
	// When nil, a record's own indicators are the universe.
	Required *IndicatorRegistry

	// ImprovementTarget is the per-indicator level below which an
	// indicator is reported as an improvement area.
	ImprovementTarget float64
}

// Engine turns an indicator record and an optional supply-chain penalty
// into a ScoreBreakdown. It holds no mutable state; evaluations with the
// same inputs always produce the same breakdown.
type Engine struct {
	weights           PillarWeights
	scale             *GradeScale
	required          *IndicatorRegistry
	improvementTarget float64
}

// NewEngine validates the weight and bucket configuration once, up front.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Weights == (PillarWeights{}) {
		cfg.Weights = DefaultPillarWeights()
	}
	if err := cfg.Weights.validate(); err != nil {
		return nil, err
	}
	if cfg.Scale == nil {
		cfg.Scale = DefaultGradeScale()
	}
	if cfg.ImprovementTarget <= 0 {
		cfg.ImprovementTarget = 60.0
	}

	return &Engine{
		weights:           cfg.Weights,
		scale:             cfg.Scale,
		required:          cfg.Required,
		improvementTarget: cfg.ImprovementTarget,
	}, nil
}

// Evaluate computes the score breakdown for a record. scopeAdjustment is
// a non-negative penalty in score points, subtracted from the
// Environmental sub-score before weighting and floored at zero.
//
// Scores carry one decimal of precision, matching the grade table's
// bucket boundaries.
func (e *Engine) Evaluate(rec domain.IndicatorRecord, scopeAdjustment float64) (domain.ScoreBreakdown, error) {
	if err := e.validateRecord(rec); err != nil {
		return domain.ScoreBreakdown{}, err
	}
	if scopeAdjustment < 0 {
		return domain.ScoreBreakdown{}, domain.ValidationError{
			Subject: rec.Name,
			Field:   "scope_adjustment",
			Message: fmt.Sprintf("must be non-negative, got %.2f", scopeAdjustment),
		}
	}

	var missing []string
	eScore := e.pillarScore(rec, domain.PillarEnvironmental, &missing)
	sScore := e.pillarScore(rec, domain.PillarSocial, &missing)
	gScore := e.pillarScore(rec, domain.PillarGovernance, &missing)

	eScore = formulas.Round1(math.Max(0, eScore-scopeAdjustment))

	total := formulas.Round1(formulas.Clamp(e.weights.Total(eScore, sScore, gScore), 0, 100))
	bucket := e.scale.Resolve(total)

	sort.Strings(missing)

	return domain.ScoreBreakdown{
		E:                 eScore,
		S:                 sScore,
		G:                 gScore,
		Total:             total,
		Grade:             bucket.Grade,
		DiscountPct:       bucket.Discount,
		MissingIndicators: missing,
	}, nil
}

// pillarScore averages one pillar's indicators. With a registry the
// registry names are the denominator and absent names contribute zero;
// without one the record's own indicators are averaged as-is.
func (e *Engine) pillarScore(rec domain.IndicatorRecord, p domain.Pillar, missing *[]string) float64 {
	values := rec.PillarIndicators(p)

	var sum float64
	var count int

	if e.required != nil {
		names := e.required.Pillar(p)
		for _, name := range names {
			v, ok := values[name]
			if !ok {
				*missing = append(*missing, name)
			}
			sum += v
			count++
		}
	} else {
		for _, v := range values {
			sum += v
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return formulas.Round1(formulas.Clamp(sum/float64(count), 0, 100))
}

// validateRecord rejects non-finite or out-of-range raw values with the
// company and indicator attached, so batch callers can report precisely.
func (e *Engine) validateRecord(rec domain.IndicatorRecord) error {
	for _, p := range domain.Pillars {
		for name, v := range rec.PillarIndicators(p) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return domain.ValidationError{
					Subject: rec.Name,
					Field:   name,
					Message: "value is not a finite number",
				}
			}
			if v < rawMin || v > rawMax {
				return domain.ValidationError{
					Subject: rec.Name,
					Field:   name,
					Message: fmt.Sprintf("value %.2f outside allowed range [%.0f,%.0f]", v, rawMin, rawMax),
				}
			}
		}
	}
	return nil
}

// ImprovementArea flags one sub-indicator sitting below the improvement
// target, with the gap to close.
type ImprovementArea struct {
	Pillar    domain.Pillar `json:"pillar"`
	Indicator string        `json:"indicator"`
	Value     float64       `json:"value"`
	Target    float64       `json:"target"`
	Gap       float64       `json:"gap"`
}

// ImprovementAreas lists sub-indicators below the improvement target,
// weakest first. The weakest pillar's indicators sort ahead on ties.
func (e *Engine) ImprovementAreas(rec domain.IndicatorRecord) []ImprovementArea {
	var areas []ImprovementArea

	for _, p := range domain.Pillars {
		for name, v := range rec.PillarIndicators(p) {
			if v < e.improvementTarget {
				areas = append(areas, ImprovementArea{
					Pillar:    p,
					Indicator: name,
					Value:     v,
					Target:    e.improvementTarget,
					Gap:       formulas.Round1(e.improvementTarget - v),
				})
			}
		}
	}

	sort.Slice(areas, func(i, j int) bool {
		if areas[i].Value != areas[j].Value {
			return areas[i].Value < areas[j].Value
		}
		return areas[i].Indicator < areas[j].Indicator
	})

	return areas
}

// GradeGap returns the points between the breakdown's total and the next
// grade up, and that grade. ok is false at the top bucket.
func (e *Engine) GradeGap(b domain.ScoreBreakdown) (points float64, next domain.Grade, ok bool) {
	upper, found := e.scale.NextUp(b.Grade)
	if !found {
		return 0, "", false
	}
	return formulas.Round1(upper.Lower - b.Total), upper.Grade, true
}
