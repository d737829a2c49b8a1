package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/esgrade/internal/database"
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

type fixture struct {
	svc         *Service
	companies   *companies.Repository
	history     *companies.HistoryDB
	benchmarks  *companies.BenchmarkRepository
	products    *products.Repository
	evaluations *ratings.Repository
	snapshots   *ratings.SnapshotRepository
	models      *forecast.Repository
	bus         *events.Bus
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	log := zerolog.Nop()
	dir := t.TempDir()

	openDB := func(file, name string, profile database.DatabaseProfile) *database.DB {
		db, err := database.New(database.Config{
			Path:    filepath.Join(dir, file),
			Profile: profile,
			Name:    name,
		})
		require.NoError(t, err, "%s database should open", name)
		require.NoError(t, db.Migrate(), "%s schema should apply", name)
		t.Cleanup(func() { _ = db.Close() })
		return db
	}

	catalog := openDB("catalog.db", "catalog", database.ProfileStandard)
	ledger := openDB("ratings.db", "ratings", database.ProfileLedger)
	cache := openDB("cache.db", "cache", database.ProfileCache)

	history, err := companies.OpenHistoryDB(filepath.Join(dir, "history.db"), log)
	require.NoError(t, err, "history database should open")
	t.Cleanup(func() { _ = history.Close() })

	analyzer, err := supplychain.NewAnalyzer(supplychain.Config{})
	require.NoError(t, err)
	engine, err := scoring.NewEngine(scoring.EngineConfig{})
	require.NoError(t, err)

	fx := &fixture{
		companies:   companies.NewRepository(catalog.Conn(), log),
		history:     history,
		benchmarks:  companies.NewBenchmarkRepository(catalog.Conn(), log),
		products:    products.NewRepository(catalog.Conn(), log),
		evaluations: ratings.NewRepository(ledger.Conn(), log),
		snapshots:   ratings.NewSnapshotRepository(ledger.Conn(), log),
		models:      forecast.NewRepository(cache.Conn(), log),
		bus:         events.NewBus(log),
	}

	fx.svc = NewService(
		fx.companies,
		fx.history,
		fx.benchmarks,
		analyzer,
		engine,
		features.NewBuilder(),
		forecast.New(forecast.Config{}, log),
		fx.models,
		fx.products,
		products.NewMatcher(log),
		fx.evaluations,
		fx.snapshots,
		events.NewManager(fx.bus, log),
		cfg,
		log,
	)

	return fx
}

// seedCompany inserts a catalog entry plus the requested months of score
// history starting at 2024-01.
func seedCompany(t *testing.T, fx *fixture, id string, months int) {
	t.Helper()

	require.NoError(t, fx.companies.Upsert(companies.Company{
		ID:        id,
		Name:      "Fixture " + id,
		Industry:  "manufacturing",
		SizeClass: "large",
		Environmental: map[string]float64{
			"carbon_emissions": 78, "renewable_energy": 82,
		},
		Social: map[string]float64{
			"employee_satisfaction": 74, "community_investment": 68,
		},
		Governance: map[string]float64{
			"board_independence": 88, "transparency_score": 90,
		},
	}))

	if months == 0 {
		return
	}
	require.LessOrEqual(t, months, 12, "seed periods stay within one year")

	series := make(domain.HistoricalSeries, months)
	for i := range series {
		series[i] = domain.HistoricalPoint{
			YearMonth: fmt.Sprintf("2024-%02d", i+1),
			E:         70 + float64(i%4),
			S:         72 + float64(i%3),
			G:         75 + float64(i%5),
		}
	}
	require.NoError(t, fx.history.UpsertSeries(id, series))
}

func seedProducts(t *testing.T, fx *fixture) {
	t.Helper()

	require.NoError(t, fx.products.ReplaceCatalog([]products.ProductSpec{
		{
			ID:          "loan-green",
			Name:        "Green Investment Loan",
			BaseRate:    5.0,
			ESGDiscount: true,
			Active:      true,
			Conditions: []products.Condition{
				{Name: "min_grade", Grade: domain.GradeB},
			},
		},
		{
			ID:       "loan-elite",
			Name:     "Elite Transition Facility",
			BaseRate: 3.5,
			Active:   true,
			Conditions: []products.Condition{
				{Name: "min_grade", Grade: domain.GradeAPlus},
			},
		},
	}))
}

// drain collects everything currently buffered on an event channel.
func drain(ch chan events.Event) []events.Event {
	var got []events.Event
	for {
		select {
		case ev := <-ch:
			got = append(got, ev)
		default:
			return got
		}
	}
}

func eventTypes(evs []events.Event) []events.EventType {
	types := make([]events.EventType, len(evs))
	for i, ev := range evs {
		types[i] = ev.Type
	}
	return types
}

func TestService_EvaluateCompany_FullRun(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 8)
	seedProducts(t, fx)

	ch := fx.bus.Subscribe("")
	defer fx.bus.Unsubscribe(ch)

	res, err := fx.svc.EvaluateCompany(context.Background(), "com-001", Options{})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.EvaluationID, "run should be assigned an id")
	assert.Equal(t, "com-001", res.CompanyID)
	assert.True(t, res.Breakdown.Grade.Known(), "grade should resolve")
	assert.Empty(t, res.ForecastSkipped)
	require.NotNil(t, res.Forecast, "8 months of history should forecast")
	assert.Equal(t, 12, res.Forecast.Horizon, "default horizon is 1Y")
	assert.Len(t, res.Matches, 2, "every active product gets a verdict")

	stored, err := fx.evaluations.Get(res.EvaluationID)
	require.NoError(t, err)
	require.NotNil(t, stored, "evaluation should persist")
	assert.Equal(t, res.Breakdown, stored.Breakdown)
	assert.NotNil(t, stored.Forecast)

	snap, err := fx.snapshots.Latest("com-001")
	require.NoError(t, err)
	require.NotNil(t, snap, "grade snapshot should persist")
	assert.Equal(t, time.Now().UTC().Format("2006-01"), snap.YearMonth)
	assert.Equal(t, res.Breakdown.Grade, snap.Grade)

	model, err := fx.models.Get("com-001")
	require.NoError(t, err)
	assert.NotNil(t, model, "trained model should be cached")

	types := eventTypes(drain(ch))
	assert.Contains(t, types, events.EvaluationStarted)
	assert.Contains(t, types, events.ForecastCompleted)
	assert.Contains(t, types, events.EvaluationCompleted)
}

func TestService_EvaluateCompany_UnknownCompany(t *testing.T) {
	fx := newFixture(t, Config{})

	res, err := fx.svc.EvaluateCompany(context.Background(), "ghost", Options{})
	assert.Nil(t, res)
	assert.True(t, domain.IsNotFound(err), "missing company should be a not-found error, got %v", err)
}

func TestService_EvaluateCompany_SkipForecast(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 8)

	res, err := fx.svc.EvaluateCompany(context.Background(), "com-001", Options{SkipForecast: true})
	require.NoError(t, err)

	assert.Nil(t, res.Forecast)
	assert.Equal(t, "skipped by request", res.ForecastSkipped)

	stored, err := fx.evaluations.Get(res.EvaluationID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.Forecast, "skipped forecast should persist as absent")

	model, err := fx.models.Get("com-001")
	require.NoError(t, err)
	assert.Nil(t, model, "no model should be trained")
}

func TestService_EvaluateCompany_NoHistorySkipsForecast(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 0)
	seedProducts(t, fx)

	res, err := fx.svc.EvaluateCompany(context.Background(), "com-001", Options{})
	require.NoError(t, err, "missing history degrades, never fails the run")

	assert.Nil(t, res.Forecast)
	assert.Equal(t, "no score history", res.ForecastSkipped)
	assert.NotEmpty(t, res.EvaluationID, "evaluation still persists")
	assert.Len(t, res.Matches, 2, "matching still runs on current scores")
}

func TestService_EvaluateCompany_ShortHistorySkipsForecast(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 3)

	res, err := fx.svc.EvaluateCompany(context.Background(), "com-001", Options{})
	require.NoError(t, err)

	assert.Nil(t, res.Forecast)
	assert.Contains(t, res.ForecastSkipped, "insufficient history")
}

func TestService_EvaluateCompany_ScopeOverride(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 0)
	require.NoError(t, fx.companies.ReplaceSuppliers("com-001", []domain.SupplierRecord{
		{ID: "sup-1", Name: "Delta Parts", Tier: 1, Emissions: 1200, ESGScore: 40, SpendWeight: 1},
	}))

	baseline, err := fx.svc.EvaluateCompany(context.Background(), "com-001", Options{SkipForecast: true})
	require.NoError(t, err)
	assert.Positive(t, baseline.Scope.RiskScore, "weak supplier should create risk")

	zero := 0.0
	clean, err := fx.svc.EvaluateCompany(context.Background(), "com-001", Options{
		SkipForecast:    true,
		ScopeAdjustment: &zero,
	})
	require.NoError(t, err)
	assert.Greater(t, clean.Breakdown.E, baseline.Breakdown.E,
		"zero override should lift the penalty")
	assert.Equal(t, baseline.Scope, clean.Scope,
		"the override changes the penalty, not the reported aggregate")

	harsh := 100.0
	floored, err := fx.svc.EvaluateCompany(context.Background(), "com-001", Options{
		SkipForecast:    true,
		ScopeAdjustment: &harsh,
	})
	require.NoError(t, err)
	assert.Zero(t, floored.Breakdown.E, "over-penalized score floors at zero")

	negative := -5.0
	_, err = fx.svc.EvaluateCompany(context.Background(), "com-001", Options{
		SkipForecast:    true,
		ScopeAdjustment: &negative,
	})
	assert.True(t, domain.IsValidation(err), "negative adjustment is rejected, got %v", err)
}

func TestService_EvaluateCompany_UnknownHorizon(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 8)

	_, err := fx.svc.EvaluateCompany(context.Background(), "com-001", Options{Horizon: "5Y"})
	assert.True(t, domain.IsValidation(err), "unknown horizon preset should be rejected, got %v", err)
}

func TestService_Forecast(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 8)

	res, err := fx.svc.Forecast(context.Background(), "com-001", "1Q")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Horizon)
	assert.Len(t, res.E.Values, 3)

	n, err := fx.evaluations.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "standalone forecasts never persist evaluations")
}

func TestService_Forecast_NoHistory(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 0)

	_, err := fx.svc.Forecast(context.Background(), "com-001", "")
	assert.True(t, domain.IsInsufficientHistory(err),
		"standalone forecast surfaces the shortage instead of degrading, got %v", err)
}

func TestService_Forecast_UnknownCompany(t *testing.T) {
	fx := newFixture(t, Config{})

	_, err := fx.svc.Forecast(context.Background(), "ghost", "")
	assert.True(t, domain.IsNotFound(err))
}

func TestService_Recommendations(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 0)
	seedProducts(t, fx)

	matches, err := fx.svc.Recommendations("com-001")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	n, err := fx.evaluations.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "recommendations never persist")
}

func TestService_RefreshBenchmarks(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 0)
	require.NoError(t, fx.companies.Upsert(companies.Company{
		ID:            "com-002",
		Name:          "Plainscore Works",
		Industry:      "manufacturing",
		SizeClass:     "large",
		Environmental: map[string]float64{"carbon_emissions": 60},
		Social:        map[string]float64{"employee_satisfaction": 60},
		Governance:    map[string]float64{"board_independence": 60},
	}))
	require.NoError(t, fx.companies.Upsert(companies.Company{
		ID:            "com-003",
		Name:          "Solbakken Energi",
		Industry:      "energy",
		SizeClass:     "mid",
		Environmental: map[string]float64{"carbon_emissions": 75},
		Social:        map[string]float64{"employee_satisfaction": 70},
		Governance:    map[string]float64{"board_independence": 80},
	}))

	cells, err := fx.svc.RefreshBenchmarks()
	require.NoError(t, err)
	assert.Empty(t, cells, "ungraded companies contribute nothing")

	for _, id := range []string{"com-001", "com-002", "com-003"} {
		_, err := fx.svc.EvaluateCompany(context.Background(), id, Options{SkipForecast: true})
		require.NoError(t, err)
	}

	cells, err = fx.svc.RefreshBenchmarks()
	require.NoError(t, err)
	require.Len(t, cells, 2, "one cell per industry and size class")

	assert.Equal(t, "energy", cells[0].Industry, "cells sort by industry")
	assert.Equal(t, 1, cells[0].SampleCount)

	manufacturing := cells[1]
	assert.Equal(t, "manufacturing", manufacturing.Industry)
	assert.Equal(t, "large", manufacturing.SizeClass)
	assert.Equal(t, 2, manufacturing.SampleCount)
	assert.InDelta(t, 70.0, manufacturing.AvgTotal, 0.01, "average of totals 80 and 60")
	assert.InDelta(t, 70.0, manufacturing.AvgE, 0.01)

	stored, err := fx.benchmarks.For("manufacturing", "large")
	require.NoError(t, err)
	require.NotNil(t, stored, "refresh persists the cells")
	assert.Equal(t, manufacturing.AvgTotal, stored.AvgTotal)
}

func TestService_Recommendations_UsesCachedModel(t *testing.T) {
	fx := newFixture(t, Config{})
	seedCompany(t, fx, "com-001", 8)
	require.NoError(t, fx.products.ReplaceCatalog([]products.ProductSpec{
		{
			ID:       "bond-projected",
			Name:     "Trajectory Bond",
			BaseRate: 4.1,
			Active:   true,
			Conditions: []products.Condition{
				{Name: "projected_total_score", Threshold: 1},
			},
		},
	}))

	// Without a cached model the projected condition cannot hold.
	matches, err := fx.svc.Recommendations("com-001")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Eligible, "projected condition fails without a forecast")

	// A full run trains and caches the model; the projection now exists.
	_, err = fx.svc.EvaluateCompany(context.Background(), "com-001", Options{})
	require.NoError(t, err)

	matches, err = fx.svc.Recommendations("com-001")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Eligible, "cached model should satisfy the projected condition")
}
