// Package forecast trains per-metric ensemble regressors on engineered
// E/S/G features and projects forward trajectories with widening
// confidence bands.
package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/modules/features"
	"github.com/aristath/esgrade/pkg/formulas"
)

// MinPeriods is the fewest historical periods a fit accepts: the long
// rolling window plus one, so at least one training pair exists.
const MinPeriods = features.LongWindow + 1

// HorizonPresets maps the preset names the API accepts onto months.
var HorizonPresets = map[string]int{
	"1Q": 3,
	"2Q": 6,
	"1Y": 12,
	"3Y": 36,
}

// HorizonMonths resolves a preset name to its month count.
func HorizonMonths(preset string) (int, error) {
	months, ok := HorizonPresets[preset]
	if !ok {
		return 0, domain.ValidationError{
			Field:   "horizon",
			Message: fmt.Sprintf("unknown preset %q", preset),
		}
	}
	return months, nil
}

// Config tunes the ensemble. Zero values fall back to defaults chosen to
// keep fits fast and reproducible.
type Config struct {
	// Seed drives every random draw in a fit. Identical inputs and seed
	// reproduce identical models and predictions.
	Seed int64

	// EnsembleSize is the number of bagged members per metric.
	EnsembleSize int

	// FeatureFraction is the share of feature columns each member sees.
	FeatureFraction float64

	// RidgeLambda is the L2 regularization strength.
	RidgeLambda float64

	// Z scales the ensemble spread into the confidence band.
	Z float64
}

func (c Config) withDefaults() Config {
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.EnsembleSize <= 0 {
		c.EnsembleSize = 25
	}
	if c.FeatureFraction <= 0 || c.FeatureFraction > 1 {
		c.FeatureFraction = 2.0 / 3.0
	}
	if c.RidgeLambda <= 0 {
		c.RidgeLambda = 1.0
	}
	if c.Z <= 0 {
		c.Z = 1.96
	}
	return c
}

// Forecaster fits trajectory models. Stateless between fits; all learned
// state lives in the returned TrainedModel.
type Forecaster struct {
	cfg     Config
	builder *features.Builder
	log     zerolog.Logger
}

// New creates a forecaster.
func New(cfg Config, log zerolog.Logger) *Forecaster {
	return &Forecaster{
		cfg:     cfg.withDefaults(),
		builder: features.NewBuilder(),
		log:     log.With().Str("component", "forecast").Logger(),
	}
}

// TrainedModel is the immutable result of one fit. It is read-only after
// Fit returns, so concurrent Predict calls need no locking.
type TrainedModel struct {
	cfg       Config
	series    domain.HistoricalSeries
	ensembles map[domain.Pillar]ensemble
}

// Seed returns the seed the model was fitted with.
func (m *TrainedModel) Seed() int64 { return m.cfg.Seed }

// HistoryLen returns the number of periods the model was fitted on.
func (m *TrainedModel) HistoryLen() int { return len(m.series) }

// Fit trains one ensemble per metric on supervised one-step-ahead pairs:
// the features at period t predict the metric's value at t+1. Only rows
// with complete feature windows train; their raw next-period targets may
// come from any row.
//
// Cancellation is honored between ensemble members.
func (f *Forecaster) Fit(ctx context.Context, fv features.FeatureVector) (*TrainedModel, error) {
	n := len(fv.Rows)
	if n < MinPeriods {
		return nil, domain.InsufficientHistoryError{Got: n, Need: MinPeriods}
	}

	series := seriesFromFeatures(fv)

	ensembles := make(map[domain.Pillar]ensemble, len(domain.Pillars))
	for idx, p := range domain.Pillars {
		xs, ys := trainingPairs(fv, p)
		if len(xs) == 0 {
			return nil, domain.InsufficientHistoryError{Got: n, Need: MinPeriods}
		}

		// Each metric draws from its own stream so adding a metric never
		// perturbs the others.
		rng := rand.New(rand.NewSource(f.cfg.Seed + int64(idx)*7919))

		ens, err := fitEnsembleCtx(ctx, xs, ys, f.cfg.EnsembleSize, f.cfg.FeatureFraction, f.cfg.RidgeLambda, rng)
		if err != nil {
			return nil, fmt.Errorf("fit %s ensemble: %w", p, err)
		}
		ensembles[p] = ens

		f.log.Debug().
			Str("metric", string(p)).
			Int("pairs", len(xs)).
			Int("members", f.cfg.EnsembleSize).
			Msg("Fitted metric ensemble")
	}

	return &TrainedModel{
		cfg:       f.cfg,
		series:    series,
		ensembles: ensembles,
	}, nil
}

// fitEnsembleCtx wraps fitEnsemble with a cancellation check per member.
func fitEnsembleCtx(ctx context.Context, xs [][]float64, ys []float64, size int, featureFraction, lambda float64, rng *rand.Rand) (ensemble, error) {
	members := make([]member, 0, size)
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			return ensemble{}, err
		}

		partial, err := fitEnsemble(xs, ys, 1, featureFraction, lambda, rng)
		if err != nil {
			return ensemble{}, err
		}
		members = append(members, partial.Members...)
	}
	return ensemble{Members: members}, nil
}

// trainingPairs assembles (features at t, value at t+1) for one metric.
func trainingPairs(fv features.FeatureVector, p domain.Pillar) ([][]float64, []float64) {
	var xs [][]float64
	var ys []float64

	for i := 0; i < len(fv.Rows)-1; i++ {
		if !fv.Rows[i].Complete {
			continue
		}
		xs = append(xs, fv.Rows[i].DesignVector(p))
		ys = append(ys, fv.Rows[i+1].Metric(p).Value)
	}

	return xs, ys
}

// seriesFromFeatures recovers the raw series snapshot carried in the
// feature rows, so Predict can rebuild features recursively.
func seriesFromFeatures(fv features.FeatureVector) domain.HistoricalSeries {
	series := make(domain.HistoricalSeries, len(fv.Rows))
	for i, row := range fv.Rows {
		series[i] = domain.HistoricalPoint{
			YearMonth: row.YearMonth,
			E:         row.E.Value,
			S:         row.S.Value,
			G:         row.G.Value,
		}
	}
	return series
}

// Predict projects horizon months forward. Each step predicts from the
// latest features, appends the predictions to a working copy of the
// series, and rebuilds the features from scratch, so every step is a
// pure function of (original history + predictions so far).
//
// Per-step uncertainty accumulates across steps: the band at step k uses
// the square root of the summed squared member spreads through k, so
// band width never shrinks with distance.
func (m *TrainedModel) Predict(horizon int) (domain.ForecastResult, error) {
	if horizon <= 0 {
		return domain.ForecastResult{}, domain.ValidationError{
			Subject: "forecast",
			Field:   "horizon",
			Message: fmt.Sprintf("must be positive, got %d", horizon),
		}
	}

	builder := features.NewBuilder()

	working := make(domain.HistoricalSeries, len(m.series), len(m.series)+horizon)
	copy(working, m.series)

	trajectories := map[domain.Pillar]*domain.Trajectory{
		domain.PillarEnvironmental: {},
		domain.PillarSocial:        {},
		domain.PillarGovernance:    {},
	}
	cumVariance := make(map[domain.Pillar]float64, len(domain.Pillars))

	for step := 0; step < horizon; step++ {
		fv, err := builder.Build(working)
		if err != nil {
			return domain.ForecastResult{}, fmt.Errorf("rebuild features at step %d: %w", step+1, err)
		}
		last := fv.Rows[len(fv.Rows)-1]

		nextPeriod, err := features.NextPeriod(last.YearMonth)
		if err != nil {
			return domain.ForecastResult{}, err
		}
		point := domain.HistoricalPoint{YearMonth: nextPeriod}

		for _, p := range domain.Pillars {
			mean, spread, ok := m.ensembles[p].predict(last.DesignVector(p))
			if !ok {
				// Degenerate features leave the ensemble mute; carry the
				// last value forward rather than fabricating a trend.
				mean = last.Metric(p).Value
				spread = 0
			}

			value := formulas.Round1(formulas.Clamp(mean, 0, 100))

			cumVariance[p] += spread * spread
			sigma := math.Sqrt(cumVariance[p])

			// Band bounds stay unrounded: width must track sigma exactly
			// so it never decreases from one step to the next.
			tr := trajectories[p]
			tr.Values = append(tr.Values, value)
			tr.Bands = append(tr.Bands, domain.Band{
				Lower: value - m.cfg.Z*sigma,
				Upper: value + m.cfg.Z*sigma,
			})

			switch p {
			case domain.PillarEnvironmental:
				point.E = value
			case domain.PillarSocial:
				point.S = value
			case domain.PillarGovernance:
				point.G = value
			}
		}

		working = append(working, point)
	}

	return domain.ForecastResult{
		Horizon: horizon,
		E:       *trajectories[domain.PillarEnvironmental],
		S:       *trajectories[domain.PillarSocial],
		G:       *trajectories[domain.PillarGovernance],
	}, nil
}
