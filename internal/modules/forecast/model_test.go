package forecast

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/modules/features"
)

// trendingSeries builds a deterministic monthly series from 2023-01: E
// trends up with a seasonal wave, S drifts slowly, G is near flat.
func trendingSeries(months int) domain.HistoricalSeries {
	series := make(domain.HistoricalSeries, 0, months)
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < months; i++ {
		wave := 3 * math.Sin(2*math.Pi*float64(i)/12)
		series = append(series, domain.HistoricalPoint{
			YearMonth: start.AddDate(0, i, 0).Format("2006-01"),
			E:         55 + 0.4*float64(i) + wave,
			S:         62 + 0.2*float64(i) - wave/2,
			G:         70 + 0.1*float64(i),
		})
	}
	return series
}

func fitVector(t *testing.T, months int) features.FeatureVector {
	t.Helper()
	fv, err := features.NewBuilder().Build(trendingSeries(months))
	require.NoError(t, err, "feature build should succeed")
	return fv
}

func fitModel(t *testing.T, months int, cfg Config) *TrainedModel {
	t.Helper()
	model, err := New(cfg, zerolog.Nop()).Fit(context.Background(), fitVector(t, months))
	require.NoError(t, err, "fit should succeed")
	return model
}

func mustPredict(t *testing.T, fv features.FeatureVector, cfg Config, horizon int) domain.ForecastResult {
	t.Helper()
	model, err := New(cfg, zerolog.Nop()).Fit(context.Background(), fv)
	require.NoError(t, err, "fit should succeed")
	result, err := model.Predict(horizon)
	require.NoError(t, err, "predict should succeed")
	return result
}

func TestHorizonMonths(t *testing.T) {
	tests := []struct {
		preset string
		months int
	}{
		{"1Q", 3},
		{"2Q", 6},
		{"1Y", 12},
		{"3Y", 36},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			months, err := HorizonMonths(tt.preset)
			assert.NoError(t, err)
			assert.Equal(t, tt.months, months)
		})
	}

	_, err := HorizonMonths("5Y")
	assert.Error(t, err, "unknown preset should be rejected")
}

func TestForecaster_Fit_RejectsShortHistory(t *testing.T) {
	f := New(Config{}, zerolog.Nop())

	_, err := f.Fit(context.Background(), fitVector(t, MinPeriods-1))
	require.Error(t, err)
	assert.True(t, domain.IsInsufficientHistory(err), "expected insufficient history, got %v", err)

	var ie domain.InsufficientHistoryError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, MinPeriods-1, ie.Got)
	assert.Equal(t, MinPeriods, ie.Need)
}

func TestForecaster_Fit_MinimumHistorySuffices(t *testing.T) {
	model := fitModel(t, MinPeriods, Config{})

	result, err := model.Predict(3)
	require.NoError(t, err, "the minimum history still yields one training pair per metric")
	assert.Len(t, result.E.Values, 3)
}

func TestForecaster_Fit_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{}, zerolog.Nop())
	_, err := f.Fit(ctx, fitVector(t, 24))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForecaster_Fit_SameSeedReproduces(t *testing.T) {
	fv := fitVector(t, 24)

	first := mustPredict(t, fv, Config{Seed: 42}, 12)
	second := mustPredict(t, fv, Config{Seed: 42}, 12)

	assert.Equal(t, first, second, "same seed and history must reproduce the trajectory exactly")
}

func TestForecaster_Fit_SeedChangesDraws(t *testing.T) {
	fv := fitVector(t, 24)

	first := mustPredict(t, fv, Config{Seed: 1}, 12)
	second := mustPredict(t, fv, Config{Seed: 2}, 12)

	assert.NotEqual(t, first, second, "different seeds should bootstrap different ensembles")
}

func TestTrainedModel_Predict_HorizonLengths(t *testing.T) {
	model := fitModel(t, 24, Config{})

	for preset, months := range HorizonPresets {
		t.Run(preset, func(t *testing.T) {
			result, err := model.Predict(months)
			require.NoError(t, err)
			assert.Equal(t, months, result.Horizon)

			for _, p := range domain.Pillars {
				tr := result.Metric(p)
				assert.Len(t, tr.Values, months, "%s values", p)
				assert.Len(t, tr.Bands, months, "%s bands", p)
			}
		})
	}
}

func TestTrainedModel_Predict_BandsWidenMonotonically(t *testing.T) {
	model := fitModel(t, 24, Config{})

	result, err := model.Predict(36)
	require.NoError(t, err)

	for _, p := range domain.Pillars {
		tr := result.Metric(p)
		prev := 0.0
		for i, band := range tr.Bands {
			width := band.Width()
			assert.GreaterOrEqual(t, width, prev, "%s band width shrank at step %d", p, i+1)
			assert.LessOrEqual(t, band.Lower, tr.Values[i], "%s lower bound above value at step %d", p, i+1)
			assert.GreaterOrEqual(t, band.Upper, tr.Values[i], "%s upper bound below value at step %d", p, i+1)
			prev = width
		}
	}
}

func TestTrainedModel_Predict_ValuesAreBoundedScores(t *testing.T) {
	model := fitModel(t, 24, Config{})

	result, err := model.Predict(12)
	require.NoError(t, err)

	for _, p := range domain.Pillars {
		for i, v := range result.Metric(p).Values {
			assert.GreaterOrEqual(t, v, 0.0, "%s value below range at step %d", p, i+1)
			assert.LessOrEqual(t, v, 100.0, "%s value above range at step %d", p, i+1)
			assert.InDelta(t, v, math.Round(v*10)/10, 1e-9, "%s value should carry one decimal", p)
		}
	}
}

func TestTrainedModel_Predict_RejectsNonPositiveHorizon(t *testing.T) {
	model := fitModel(t, 24, Config{})

	for _, horizon := range []int{0, -3} {
		_, err := model.Predict(horizon)
		require.Error(t, err, "horizon %d", horizon)
		assert.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
	}
}

func TestTrainedModel_Predict_DoesNotMutateModel(t *testing.T) {
	model := fitModel(t, 24, Config{})

	first, err := model.Predict(6)
	require.NoError(t, err)
	second, err := model.Predict(6)
	require.NoError(t, err)

	assert.Equal(t, first, second, "prediction must not mutate the trained model")
}

func TestTrainedModel_StateRoundTrip(t *testing.T) {
	model := fitModel(t, 24, Config{Seed: 7})

	data, err := model.EncodeState()
	require.NoError(t, err)

	restored, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, model.Seed(), restored.Seed())
	assert.Equal(t, model.HistoryLen(), restored.HistoryLen())

	want, err := model.Predict(12)
	require.NoError(t, err)
	got, err := restored.Predict(12)
	require.NoError(t, err)
	assert.Equal(t, want, got, "restored model must predict identically")
}

func TestDecodeState_RejectsCorruptPayloads(t *testing.T) {
	_, err := DecodeState([]byte("definitely not msgpack"))
	assert.Error(t, err)

	empty := &TrainedModel{}
	data, err := empty.EncodeState()
	require.NoError(t, err)
	_, err = DecodeState(data)
	assert.Error(t, err, "state without a series snapshot should be rejected")

	partial := &TrainedModel{
		cfg:    Config{}.withDefaults(),
		series: domain.HistoricalSeries{{YearMonth: "2024-01", E: 50, S: 50, G: 50}},
	}
	data, err = partial.EncodeState()
	require.NoError(t, err)
	_, err = DecodeState(data)
	assert.Error(t, err, "state without pillar ensembles should be rejected")
}

func newCacheConn(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err, "cache database should open")
	require.NoError(t, db.Migrate(), "cache schema should apply")
	t.Cleanup(func() { _ = db.Close() })

	return db.Conn()
}

func TestRepository_SaveAndGet(t *testing.T) {
	repo := NewRepository(newCacheConn(t), zerolog.Nop())
	model := fitModel(t, 24, Config{Seed: 11})

	require.NoError(t, repo.Save("com-001", Fingerprint(trendingSeries(24)), model))

	loaded, err := repo.Get("com-001")
	require.NoError(t, err)
	require.NotNil(t, loaded, "saved model should load")
	assert.Equal(t, model.Seed(), loaded.Seed())
	assert.Equal(t, model.HistoryLen(), loaded.HistoryLen())

	want, err := model.Predict(6)
	require.NoError(t, err)
	got, err := loaded.Predict(6)
	require.NoError(t, err)
	assert.Equal(t, want, got, "cached model must predict identically")
}

func TestRepository_GetMatching(t *testing.T) {
	repo := NewRepository(newCacheConn(t), zerolog.Nop())
	series := trendingSeries(24)

	require.NoError(t, repo.Save("com-001", Fingerprint(series), fitModel(t, 24, Config{})))

	fresh, err := repo.GetMatching("com-001", Fingerprint(series))
	require.NoError(t, err)
	assert.NotNil(t, fresh, "matching fingerprint should load")

	grown := append(series, domain.HistoricalPoint{YearMonth: "2025-01", E: 70, S: 70, G: 70})
	stale, err := repo.GetMatching("com-001", Fingerprint(grown))
	require.NoError(t, err)
	assert.Nil(t, stale, "a model trained on different history reads as absent")
}

func TestFingerprint_TracksSeriesContent(t *testing.T) {
	series := trendingSeries(12)

	assert.Equal(t, Fingerprint(series), Fingerprint(trendingSeries(12)),
		"identical series share a fingerprint")
	assert.NotEqual(t, Fingerprint(series), Fingerprint(trendingSeries(13)),
		"an extra period changes the fingerprint")

	revised := trendingSeries(12)
	revised[4].S += 0.5
	assert.NotEqual(t, Fingerprint(series), Fingerprint(revised),
		"a revised value changes the fingerprint")
}

func TestRepository_GetMissing(t *testing.T) {
	repo := NewRepository(newCacheConn(t), zerolog.Nop())

	model, err := repo.Get("com-unknown")
	assert.NoError(t, err)
	assert.Nil(t, model, "missing state should read as absent, not as an error")
}

func TestRepository_SaveReplaces(t *testing.T) {
	repo := NewRepository(newCacheConn(t), zerolog.Nop())
	fp := Fingerprint(trendingSeries(24))

	require.NoError(t, repo.Save("com-001", fp, fitModel(t, 24, Config{Seed: 1})))
	require.NoError(t, repo.Save("com-001", fp, fitModel(t, 24, Config{Seed: 2})))

	loaded, err := repo.Get("com-001")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(2), loaded.Seed(), "second save should replace the first")

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_DeleteAndPurge(t *testing.T) {
	repo := NewRepository(newCacheConn(t), zerolog.Nop())
	model := fitModel(t, 24, Config{})
	fp := Fingerprint(trendingSeries(24))

	require.NoError(t, repo.Save("com-001", fp, model))
	require.NoError(t, repo.Save("com-002", fp, model))

	require.NoError(t, repo.Delete("com-001"))
	gone, err := repo.Get("com-001")
	require.NoError(t, err)
	assert.Nil(t, gone)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.Purge())
	n, err = repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRepository_GetDropsCorruptState(t *testing.T) {
	conn := newCacheConn(t)
	repo := NewRepository(conn, zerolog.Nop())

	_, err := conn.Exec(
		"INSERT INTO model_states (company_id, fingerprint, state, seed, history_len, trained_at) VALUES (?, ?, ?, ?, ?, ?)",
		"com-bad", "deadbeef", []byte("garbage"), 42, 0, "2026-01-01T00:00:00Z",
	)
	require.NoError(t, err)

	model, err := repo.Get("com-bad")
	require.NoError(t, err)
	assert.Nil(t, model, "corrupt state should read as absent")

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "corrupt state should be cleaned up")
}
