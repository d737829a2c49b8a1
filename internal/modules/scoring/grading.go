package scoring

import (
	"fmt"

	"github.com/aristath/esgrade/internal/domain"
)

// GradeBucket maps one inclusive-lower score range to a grade and the
// rate discount (percentage points) that grade earns.
type GradeBucket struct {
	Grade    domain.Grade `json:"grade"`
	Lower    float64      `json:"lower"`
	Upper    float64      `json:"upper"`
	Discount float64      `json:"discount_pct"`
}

// GradeScale is the descending-ordered bucket table that resolves a total
// score to a grade and discount. Contiguity and full [0,100] coverage are
// checked once at construction, never per lookup.
type GradeScale struct {
	buckets []GradeBucket
}

// DefaultGradeScale returns the policy grade table.
func DefaultGradeScale() *GradeScale {
	scale, err := NewGradeScale([]GradeBucket{
		{Grade: domain.GradeAPlus, Lower: 90, Upper: 100, Discount: 2.7},
		{Grade: domain.GradeA, Lower: 85, Upper: 90, Discount: 2.2},
		{Grade: domain.GradeAMinus, Lower: 80, Upper: 85, Discount: 1.8},
		{Grade: domain.GradeBPlus, Lower: 75, Upper: 80, Discount: 1.3},
		{Grade: domain.GradeB, Lower: 70, Upper: 75, Discount: 1.2},
		{Grade: domain.GradeBMinus, Lower: 65, Upper: 70, Discount: 0.8},
		{Grade: domain.GradeC, Lower: 0, Upper: 65, Discount: 0.4},
	})
	if err != nil {
		// The literal table above is part of the build; a gap in it is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return scale
}

// NewGradeScale validates a descending bucket table: non-empty, every
// bucket non-degenerate, adjacent buckets contiguous, and the union
// covering [0,100] exactly.
func NewGradeScale(buckets []GradeBucket) (*GradeScale, error) {
	if len(buckets) == 0 {
		return nil, domain.ConfigurationError{Component: "grade scale", Message: "bucket table is empty"}
	}

	for i, b := range buckets {
		if b.Lower >= b.Upper {
			return nil, domain.ConfigurationError{
				Component: "grade scale",
				Message:   fmt.Sprintf("bucket %q has empty range [%.1f,%.1f]", b.Grade, b.Lower, b.Upper),
			}
		}
		if i > 0 && buckets[i-1].Lower != b.Upper {
			return nil, domain.ConfigurationError{
				Component: "grade scale",
				Message: fmt.Sprintf("gap between %q (lower %.1f) and %q (upper %.1f)",
					buckets[i-1].Grade, buckets[i-1].Lower, b.Grade, b.Upper),
			}
		}
	}

	if top := buckets[0].Upper; top != 100 {
		return nil, domain.ConfigurationError{
			Component: "grade scale",
			Message:   fmt.Sprintf("table covers up to %.1f, want 100", top),
		}
	}
	if bottom := buckets[len(buckets)-1].Lower; bottom != 0 {
		return nil, domain.ConfigurationError{
			Component: "grade scale",
			Message:   fmt.Sprintf("table covers down to %.1f, want 0", bottom),
		}
	}

	return &GradeScale{buckets: buckets}, nil
}

// Resolve maps a total score to its bucket by scanning the descending
// table for the first bucket whose lower bound does not exceed the score.
// A score sitting exactly on a boundary lands in the higher bucket.
func (s *GradeScale) Resolve(total float64) GradeBucket {
	for _, b := range s.buckets {
		if total >= b.Lower {
			return b
		}
	}
	// Negative totals cannot occur after clamping; map them to the floor
	// bucket rather than inventing an error path.
	return s.buckets[len(s.buckets)-1]
}

// NextUp returns the bucket directly above the given grade, or false when
// the grade is already the top bucket or not in the table.
func (s *GradeScale) NextUp(g domain.Grade) (GradeBucket, bool) {
	for i, b := range s.buckets {
		if b.Grade == g {
			if i == 0 {
				return GradeBucket{}, false
			}
			return s.buckets[i-1], true
		}
	}
	return GradeBucket{}, false
}

// Buckets returns a copy of the table, best grade first.
func (s *GradeScale) Buckets() []GradeBucket {
	out := make([]GradeBucket, len(s.buckets))
	copy(out, s.buckets)
	return out
}
