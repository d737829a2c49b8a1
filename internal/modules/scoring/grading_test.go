package scoring

import (
	"testing"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGradeScale_RejectsEmptyTable(t *testing.T) {
	_, err := NewGradeScale(nil)
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err), "empty table should be a configuration error")
}

func TestNewGradeScale_RejectsGap(t *testing.T) {
	_, err := NewGradeScale([]GradeBucket{
		{Grade: domain.GradeAPlus, Lower: 90, Upper: 100, Discount: 2.7},
		{Grade: domain.GradeC, Lower: 0, Upper: 85, Discount: 0.4}, // hole between 85 and 90
	})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
	assert.Contains(t, err.Error(), "gap")
}

func TestNewGradeScale_RejectsPartialCoverage(t *testing.T) {
	_, err := NewGradeScale([]GradeBucket{
		{Grade: domain.GradeAPlus, Lower: 90, Upper: 100, Discount: 2.7},
		{Grade: domain.GradeC, Lower: 10, Upper: 90, Discount: 0.4}, // floor at 10, not 0
	})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))

	_, err = NewGradeScale([]GradeBucket{
		{Grade: domain.GradeAPlus, Lower: 90, Upper: 95, Discount: 2.7}, // ceiling at 95
		{Grade: domain.GradeC, Lower: 0, Upper: 90, Discount: 0.4},
	})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestNewGradeScale_RejectsEmptyRange(t *testing.T) {
	_, err := NewGradeScale([]GradeBucket{
		{Grade: domain.GradeAPlus, Lower: 100, Upper: 100, Discount: 2.7},
		{Grade: domain.GradeC, Lower: 0, Upper: 100, Discount: 0.4},
	})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestDefaultGradeScale_CoversFullRange(t *testing.T) {
	scale := DefaultGradeScale()
	buckets := scale.Buckets()

	require.NotEmpty(t, buckets)
	assert.Equal(t, 100.0, buckets[0].Upper, "top bucket should reach 100")
	assert.Equal(t, 0.0, buckets[len(buckets)-1].Lower, "bottom bucket should reach 0")

	for i := 1; i < len(buckets); i++ {
		assert.Equal(t, buckets[i].Upper, buckets[i-1].Lower,
			"bucket %q should touch bucket %q", buckets[i].Grade, buckets[i-1].Grade)
	}
}

func TestGradeScale_Resolve_BoundaryGoesToHigherBucket(t *testing.T) {
	scale := DefaultGradeScale()

	tests := []struct {
		total    float64
		grade    domain.Grade
		discount float64
	}{
		{100, domain.GradeAPlus, 2.7},
		{90, domain.GradeAPlus, 2.7},
		{89.9, domain.GradeA, 2.2},
		{85, domain.GradeA, 2.2},
		{80, domain.GradeAMinus, 1.8},
		{79.9, domain.GradeBPlus, 1.3},
		{75, domain.GradeBPlus, 1.3},
		{70, domain.GradeB, 1.2},
		{65, domain.GradeBMinus, 0.8},
		{64.9, domain.GradeC, 0.4},
		{0, domain.GradeC, 0.4},
	}

	for _, tt := range tests {
		bucket := scale.Resolve(tt.total)
		assert.Equal(t, tt.grade, bucket.Grade, "total %.1f", tt.total)
		assert.Equal(t, tt.discount, bucket.Discount, "total %.1f", tt.total)
	}
}

func TestGradeScale_NextUp(t *testing.T) {
	scale := DefaultGradeScale()

	next, ok := scale.NextUp(domain.GradeAMinus)
	require.True(t, ok)
	assert.Equal(t, domain.GradeA, next.Grade)
	assert.Equal(t, 85.0, next.Lower)

	_, ok = scale.NextUp(domain.GradeAPlus)
	assert.False(t, ok, "top grade has no bucket above it")

	_, ok = scale.NextUp(domain.Grade("Z"))
	assert.False(t, ok, "unknown grade is not in the table")
}
