// Package pipeline orchestrates a full grading run: supply-chain rollup,
// scoring, forecasting, product matching, persistence, and event emission.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/events"
	"github.com/aristath/esgrade/internal/modules/companies"
	"github.com/aristath/esgrade/internal/modules/features"
	"github.com/aristath/esgrade/internal/modules/forecast"
	"github.com/aristath/esgrade/internal/modules/products"
	"github.com/aristath/esgrade/internal/modules/ratings"
	"github.com/aristath/esgrade/internal/modules/scoring"
	"github.com/aristath/esgrade/internal/modules/supplychain"
)

// Config tunes the pipeline. Zero values fall back to the defaults.
type Config struct {
	// DefaultHorizon is the forecast horizon preset used when a request
	// does not name one.
	DefaultHorizon string

	// FitTimeout caps model training per company. A fit that exceeds it
	// skips forecasting; the evaluation itself still completes.
	FitTimeout time.Duration

	// Workers bounds batch concurrency.
	Workers int

	// ProgressEvery throttles batch progress events to one per N
	// completed companies.
	ProgressEvery int
}

func (c Config) withDefaults() Config {
	if c.DefaultHorizon == "" {
		c.DefaultHorizon = "1Y"
	}
	if c.FitTimeout <= 0 {
		c.FitTimeout = 30 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 5
	}
	return c
}

// Options control one evaluation run.
type Options struct {
	// Horizon is a forecast horizon preset ("1Q", "2Q", "1Y", "3Y").
	// Empty uses the pipeline default.
	Horizon string

	// ScopeAdjustment, when set, replaces the supplier-derived
	// Environmental penalty with the caller's value.
	ScopeAdjustment *float64

	// SkipForecast runs the evaluation without the forecasting stage.
	SkipForecast bool
}

// Result is the outcome of one evaluation run.
type Result struct {
	EvaluationID string                 `json:"evaluation_id"`
	CompanyID    string                 `json:"company_id"`
	Breakdown    domain.ScoreBreakdown  `json:"breakdown"`
	Scope        domain.ScopeAggregate  `json:"scope"`
	Forecast     *domain.ForecastResult `json:"forecast,omitempty"`

	// ForecastSkipped names the reason when Forecast is nil.
	ForecastSkipped string `json:"forecast_skipped,omitempty"`

	Matches []products.MatchResult `json:"matches"`
}

// Service wires the grading stages together.
type Service struct {
	companies   *companies.Repository
	history     *companies.HistoryDB
	benchmarks  *companies.BenchmarkRepository
	analyzer    *supplychain.Analyzer
	engine      *scoring.Engine
	builder     *features.Builder
	forecaster  *forecast.Forecaster
	models      *forecast.Repository
	productRepo *products.Repository
	matcher     *products.Matcher
	evaluations *ratings.Repository
	snapshots   *ratings.SnapshotRepository
	events      *events.Manager

	cfg Config
	log zerolog.Logger
}

// NewService creates the evaluation pipeline.
func NewService(
	companyRepo *companies.Repository,
	history *companies.HistoryDB,
	benchmarks *companies.BenchmarkRepository,
	analyzer *supplychain.Analyzer,
	engine *scoring.Engine,
	builder *features.Builder,
	forecaster *forecast.Forecaster,
	models *forecast.Repository,
	productRepo *products.Repository,
	matcher *products.Matcher,
	evaluations *ratings.Repository,
	snapshots *ratings.SnapshotRepository,
	eventManager *events.Manager,
	cfg Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		companies:   companyRepo,
		history:     history,
		benchmarks:  benchmarks,
		analyzer:    analyzer,
		engine:      engine,
		builder:     builder,
		forecaster:  forecaster,
		models:      models,
		productRepo: productRepo,
		matcher:     matcher,
		evaluations: evaluations,
		snapshots:   snapshots,
		events:      eventManager,
		cfg:         cfg.withDefaults(),
		log:         log.With().Str("service", "pipeline").Logger(),
	}
}

// EvaluateCompany runs the full pipeline for one company: aggregate the
// supplier scope, score, forecast, match products, persist the run, and
// emit events. Forecasting failures that stem from the company's data
// (no history, short history, slow fit) degrade to a skipped forecast
// rather than failing the evaluation.
func (s *Service) EvaluateCompany(ctx context.Context, companyID string, opts Options) (*Result, error) {
	start := time.Now()

	company, err := s.companies.Get(companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.NotFoundError{Kind: "company", ID: companyID}
	}

	horizon := opts.Horizon
	if horizon == "" {
		horizon = s.cfg.DefaultHorizon
	}
	months, err := forecast.HorizonMonths(horizon)
	if err != nil {
		return nil, err
	}

	s.events.Emit("pipeline", &events.EvaluationStartedData{CompanyID: companyID})

	suppliers, err := s.companies.SuppliersFor(companyID)
	if err != nil {
		return nil, err
	}
	scope, err := s.analyzer.Aggregate(suppliers)
	if err != nil {
		return nil, err
	}

	adjustment := scope.RiskScore
	if opts.ScopeAdjustment != nil {
		adjustment = *opts.ScopeAdjustment
	}

	breakdown, err := s.engine.Evaluate(company.Record(), adjustment)
	if err != nil {
		return nil, err
	}

	result := &Result{
		CompanyID: companyID,
		Breakdown: breakdown,
		Scope:     scope,
	}

	if opts.SkipForecast {
		result.ForecastSkipped = "skipped by request"
	} else {
		result.Forecast, result.ForecastSkipped, err = s.runForecast(ctx, companyID, breakdown, months)
		if err != nil {
			return nil, err
		}
	}

	catalog, err := s.productRepo.Active()
	if err != nil {
		return nil, err
	}
	result.Matches = s.matcher.Match(breakdown, result.Forecast, catalog)

	evaluationID, err := s.evaluations.Record(ratings.Evaluation{
		CompanyID: companyID,
		Breakdown: breakdown,
		Scope:     scope,
		Forecast:  result.Forecast,
		Matches:   result.Matches,
	})
	if err != nil {
		return nil, err
	}
	result.EvaluationID = evaluationID

	yearMonth := time.Now().UTC().Format("2006-01")
	if err := s.snapshots.Record(companyID, yearMonth, breakdown.Grade, breakdown.Total); err != nil {
		return nil, err
	}

	s.events.Emit("pipeline", &events.EvaluationCompletedData{
		CompanyID:    companyID,
		EvaluationID: evaluationID,
		Grade:        string(breakdown.Grade),
		TotalScore:   breakdown.Total,
		DiscountPct:  breakdown.DiscountPct,
		Eligible:     countEligible(result.Matches),
		ForecastRan:  result.Forecast != nil,
	})

	s.log.Info().
		Str("company_id", companyID).
		Str("evaluation_id", evaluationID).
		Str("grade", string(breakdown.Grade)).
		Float64("total", breakdown.Total).
		Bool("forecast_ran", result.Forecast != nil).
		Dur("elapsed", time.Since(start)).
		Msg("Evaluation completed")

	return result, nil
}

// Forecast runs the forecasting stage alone: no persistence, no product
// matching. The company's current standing still seeds the series so the
// projection starts from today's scores.
func (s *Service) Forecast(ctx context.Context, companyID string, horizon string) (*domain.ForecastResult, error) {
	company, err := s.companies.Get(companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.NotFoundError{Kind: "company", ID: companyID}
	}

	if horizon == "" {
		horizon = s.cfg.DefaultHorizon
	}
	months, err := forecast.HorizonMonths(horizon)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.score(companyID, *company)
	if err != nil {
		return nil, err
	}

	series, err := s.history.GetSeries(companyID, 0)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, domain.InsufficientHistoryError{Got: 0, Need: forecast.MinPeriods}
	}

	return s.trainAndPredict(ctx, companyID, breakdown, series, months)
}

// Recommendations matches a company's current standing against the active
// product catalog without persisting anything. A cached trained model, when
// one exists, supplies the projected grade for eligibility windows.
func (s *Service) Recommendations(companyID string) ([]products.MatchResult, error) {
	company, err := s.companies.Get(companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.NotFoundError{Kind: "company", ID: companyID}
	}

	breakdown, err := s.score(companyID, *company)
	if err != nil {
		return nil, err
	}

	catalog, err := s.productRepo.Active()
	if err != nil {
		return nil, err
	}

	// A cached model only counts when it was trained on the history as it
	// stands now; stale models would project from revised or missing data.
	var projected *domain.ForecastResult
	if series, herr := s.history.GetSeries(companyID, 0); herr == nil && len(series) > 0 {
		model, merr := s.models.GetMatching(companyID, forecast.Fingerprint(series))
		if merr == nil && model != nil {
			if months, perr := forecast.HorizonMonths(s.cfg.DefaultHorizon); perr == nil {
				if prediction, perr := model.Predict(months); perr == nil {
					projected = &prediction
				}
			}
		}
	}

	return s.matcher.Match(breakdown, projected, catalog), nil
}

// score aggregates the supplier scope and evaluates the company.
func (s *Service) score(companyID string, company companies.Company) (domain.ScoreBreakdown, error) {
	suppliers, err := s.companies.SuppliersFor(companyID)
	if err != nil {
		return domain.ScoreBreakdown{}, err
	}
	scope, err := s.analyzer.Aggregate(suppliers)
	if err != nil {
		return domain.ScoreBreakdown{}, err
	}
	return s.engine.Evaluate(company.Record(), scope.RiskScore)
}

// runForecast trains and predicts for one company, degrading recoverable
// conditions to a skip reason: either the forecast ran, or the reason says
// why it did not, or the error is real.
func (s *Service) runForecast(ctx context.Context, companyID string, breakdown domain.ScoreBreakdown, months int) (*domain.ForecastResult, string, error) {
	series, err := s.history.GetSeries(companyID, 0)
	if err != nil {
		return nil, "", err
	}
	if len(series) == 0 {
		return nil, "no score history", nil
	}

	prediction, err := s.trainAndPredict(ctx, companyID, breakdown, series, months)
	if err != nil {
		if domain.IsInsufficientHistory(err) {
			s.log.Debug().Str("company_id", companyID).Err(err).Msg("Forecast skipped")
			return nil, err.Error(), nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			s.log.Warn().
				Str("company_id", companyID).
				Dur("timeout", s.cfg.FitTimeout).
				Msg("Model training timed out, forecast skipped")
			return nil, "model training timed out", nil
		}
		return nil, "", err
	}
	return prediction, "", nil
}

// trainAndPredict appends the fresh evaluation to the stored series, fits
// an ensemble under the configured timeout, predicts, and caches the model.
// The cache write is advisory; its failure only logs.
func (s *Service) trainAndPredict(ctx context.Context, companyID string, breakdown domain.ScoreBreakdown, series domain.HistoricalSeries, months int) (*domain.ForecastResult, error) {
	// Fingerprint the stored series before the in-memory append, so cache
	// freshness tracks the persisted history.
	fingerprint := forecast.Fingerprint(series)

	// The fresh evaluation becomes the latest point, so the forecast
	// starts from today's scores rather than last month's.
	next, err := features.NextPeriod(series[len(series)-1].YearMonth)
	if err != nil {
		return nil, err
	}
	series = append(series, domain.HistoricalPoint{
		YearMonth: next,
		E:         breakdown.E,
		S:         breakdown.S,
		G:         breakdown.G,
	})

	fv, err := s.builder.Build(series)
	if err != nil {
		return nil, err
	}

	fitCtx, cancel := context.WithTimeout(ctx, s.cfg.FitTimeout)
	defer cancel()

	model, err := s.forecaster.Fit(fitCtx, fv)
	if err != nil {
		return nil, err
	}

	prediction, err := model.Predict(months)
	if err != nil {
		return nil, err
	}

	if err := s.models.Save(companyID, fingerprint, model); err != nil {
		s.log.Warn().Str("company_id", companyID).Err(err).Msg("Failed to cache trained model")
	}

	s.events.Emit("pipeline", &events.ForecastCompletedData{
		CompanyID: companyID,
		Horizon:   prediction.Horizon,
		FinalE:    prediction.E.Final(),
		FinalS:    prediction.S.Final(),
		FinalG:    prediction.G.Final(),
	})

	return &prediction, nil
}

func countEligible(matches []products.MatchResult) int {
	n := 0
	for _, m := range matches {
		if m.Eligible {
			n++
		}
	}
	return n
}
