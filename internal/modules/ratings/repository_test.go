package ratings

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/modules/products"
)

func newRatingsConn(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "ratings.db"),
		Profile: database.ProfileLedger,
		Name:    "ratings",
	})
	require.NoError(t, err, "ratings database should open")
	require.NoError(t, db.Migrate(), "ratings schema should apply")
	t.Cleanup(func() { _ = db.Close() })

	return db.Conn()
}

func sampleEvaluation(companyID string) Evaluation {
	return Evaluation{
		CompanyID: companyID,
		Breakdown: domain.ScoreBreakdown{
			E: 72.5, S: 68.0, G: 80.1,
			Total:             73.4,
			Grade:             domain.GradeB,
			DiscountPct:       1.2,
			MissingIndicators: []string{"water_usage"},
		},
		Scope: domain.ScopeAggregate{
			Scope3Emissions: 1234.5,
			RiskScore:       18.2,
			SupplierCount:   7,
		},
		CreatedAt: time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func flatTrajectory(value float64, horizon int) domain.Trajectory {
	traj := domain.Trajectory{
		Values: make([]float64, horizon),
		Bands:  make([]domain.Band, horizon),
	}
	for i := range traj.Values {
		traj.Values[i] = value
		traj.Bands[i] = domain.Band{Lower: value - float64(i+1), Upper: value + float64(i+1)}
	}
	return traj
}

func TestRepository_RecordAndGet(t *testing.T) {
	repo := NewRepository(newRatingsConn(t), zerolog.Nop())

	eval := sampleEvaluation("com-001")
	eval.Forecast = &domain.ForecastResult{
		Horizon: 3,
		E:       flatTrajectory(74, 3),
		S:       flatTrajectory(69, 3),
		G:       flatTrajectory(81, 3),
	}
	eval.Matches = []products.MatchResult{
		{ProductID: "loan-green", ProductName: "Green Loan", Eligible: true, BaseRate: 3.2, DiscountApplied: 1.2, EffectiveRate: 2.0},
		{ProductID: "loan-outlook", ProductName: "Outlook Loan", FailedConditions: []string{"projected_e_score"}, BaseRate: 2.9, EffectiveRate: 2.9},
	}

	id, err := repo.Record(eval)
	require.NoError(t, err)
	assert.NotEmpty(t, id, "a fresh run id is assigned")

	loaded, err := repo.Get(id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "com-001", loaded.CompanyID)
	assert.Equal(t, eval.Breakdown, loaded.Breakdown)
	assert.Equal(t, eval.Scope, loaded.Scope)
	require.NotNil(t, loaded.Forecast)
	assert.Equal(t, *eval.Forecast, *loaded.Forecast)
	assert.Equal(t, eval.Matches, loaded.Matches)
	assert.True(t, loaded.CreatedAt.Equal(eval.CreatedAt), "timestamps survive the round trip")
}

func TestRepository_RecordKeepsCallerID(t *testing.T) {
	repo := NewRepository(newRatingsConn(t), zerolog.Nop())

	eval := sampleEvaluation("com-001")
	eval.ID = "run-fixed"

	id, err := repo.Record(eval)
	require.NoError(t, err)
	assert.Equal(t, "run-fixed", id)
}

func TestRepository_RecordRejectsInvalid(t *testing.T) {
	repo := NewRepository(newRatingsConn(t), zerolog.Nop())

	t.Run("missing company id", func(t *testing.T) {
		eval := sampleEvaluation("")
		_, err := repo.Record(eval)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("unknown grade", func(t *testing.T) {
		eval := sampleEvaluation("com-001")
		eval.Breakdown.Grade = "Z"
		_, err := repo.Record(eval)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestRepository_GetMissing(t *testing.T) {
	repo := NewRepository(newRatingsConn(t), zerolog.Nop())

	loaded, err := repo.Get("run-unknown")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRepository_SkippedForecastStaysAbsent(t *testing.T) {
	repo := NewRepository(newRatingsConn(t), zerolog.Nop())

	eval := sampleEvaluation("com-001")
	eval.Breakdown.MissingIndicators = nil

	id, err := repo.Record(eval)
	require.NoError(t, err)

	loaded, err := repo.Get(id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Nil(t, loaded.Forecast, "a skipped forecast reads back as nil")
	assert.Nil(t, loaded.Matches)
	assert.Nil(t, loaded.Breakdown.MissingIndicators)
}

func TestRepository_Latest(t *testing.T) {
	repo := NewRepository(newRatingsConn(t), zerolog.Nop())

	first := sampleEvaluation("com-001")
	first.CreatedAt = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	_, err := repo.Record(first)
	require.NoError(t, err)

	second := sampleEvaluation("com-001")
	second.CreatedAt = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	second.Breakdown.Grade = domain.GradeBPlus
	secondID, err := repo.Record(second)
	require.NoError(t, err)

	_, err = repo.Record(sampleEvaluation("com-other"))
	require.NoError(t, err)

	latest, err := repo.Latest("com-001")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, secondID, latest.ID)
	assert.Equal(t, domain.GradeBPlus, latest.Breakdown.Grade)

	missing, err := repo.Latest("com-never-graded")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_History(t *testing.T) {
	repo := newSeededRepo(t)

	history, err := repo.History("com-001", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].CreatedAt.After(history[1].CreatedAt), "most recent first")
	assert.True(t, history[1].CreatedAt.After(history[2].CreatedAt))

	limited, err := repo.History("com-001", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, history[0].ID, limited[0].ID)
}

func TestRepository_InRange(t *testing.T) {
	repo := newSeededRepo(t)

	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	window, err := repo.InRange("com-001", start, end)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC), window[0].CreatedAt)

	all, err := repo.InRange("com-001",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.Before(all[1].CreatedAt), "range queries read oldest first")
}

// newSeededRepo seeds three monthly runs for com-001.
func newSeededRepo(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(newRatingsConn(t), zerolog.Nop())

	for month := 6; month <= 8; month++ {
		eval := sampleEvaluation("com-001")
		eval.CreatedAt = time.Date(2025, time.Month(month), 1, 9, 0, 0, 0, time.UTC)
		_, err := repo.Record(eval)
		require.NoError(t, err)
	}

	n, err := repo.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	return repo
}
