package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrade_Rank(t *testing.T) {
	tests := []struct {
		grade    Grade
		expected int
	}{
		{GradeAPlus, 0},
		{GradeA, 1},
		{GradeAMinus, 2},
		{GradeBPlus, 3},
		{GradeB, 4},
		{GradeBMinus, 5},
		{GradeC, 6},
		{Grade("D"), -1},
		{Grade(""), -1},
	}

	for _, tt := range tests {
		t.Run(string(tt.grade), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.grade.Rank())
		})
	}
}

func TestGrade_AtLeast(t *testing.T) {
	tests := []struct {
		name     string
		grade    Grade
		min      Grade
		expected bool
	}{
		{"equal grade satisfies", GradeB, GradeB, true},
		{"better grade satisfies", GradeAPlus, GradeB, true},
		{"worse grade fails", GradeBMinus, GradeB, false},
		{"one step better", GradeBPlus, GradeB, true},
		{"unknown grade never satisfies", Grade("D"), GradeC, false},
		{"unknown minimum never satisfied", GradeAPlus, Grade("Z"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.grade.AtLeast(tt.min))
		})
	}
}

func TestScoreBreakdown_Metric(t *testing.T) {
	breakdown := ScoreBreakdown{E: 80, S: 70, G: 90}

	assert.Equal(t, 80.0, breakdown.Metric(PillarEnvironmental))
	assert.Equal(t, 70.0, breakdown.Metric(PillarSocial))
	assert.Equal(t, 90.0, breakdown.Metric(PillarGovernance))
	assert.Equal(t, 0.0, breakdown.Metric(Pillar("X")))
}

func TestHistoricalSeries_MetricValues(t *testing.T) {
	series := HistoricalSeries{
		{YearMonth: "2025-01", E: 70, S: 75, G: 80},
		{YearMonth: "2025-02", E: 71, S: 74, G: 81},
		{YearMonth: "2025-03", E: 72, S: 73, G: 82},
	}

	assert.Equal(t, []float64{70, 71, 72}, series.MetricValues(PillarEnvironmental))
	assert.Equal(t, []float64{75, 74, 73}, series.MetricValues(PillarSocial))
	assert.Equal(t, []float64{80, 81, 82}, series.MetricValues(PillarGovernance))
}

func TestTrajectory_FinalAndAverage(t *testing.T) {
	trajectory := Trajectory{Values: []float64{70, 74, 78}}

	assert.Equal(t, 78.0, trajectory.Final())
	assert.InDelta(t, 74.0, trajectory.Average(), 0.0001)

	empty := Trajectory{}
	assert.Equal(t, 0.0, empty.Final())
	assert.Equal(t, 0.0, empty.Average())
}

func TestForecastResult_TotalAt(t *testing.T) {
	forecast := ForecastResult{
		Horizon: 2,
		E:       Trajectory{Values: []float64{80, 70}},
		S:       Trajectory{Values: []float64{70, 70}},
		G:       Trajectory{Values: []float64{90, 90}},
	}

	// 0.30*80 + 0.35*70 + 0.35*90 = 80.0
	assert.InDelta(t, 80.0, forecast.TotalAt(0), 0.0001)
	// 0.30*70 + 0.35*70 + 0.35*90 = 77.0
	assert.InDelta(t, 77.0, forecast.TotalAt(1), 0.0001)
	assert.Equal(t, 0.0, forecast.TotalAt(5))
}
