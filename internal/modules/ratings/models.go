// Package ratings persists grading runs: the full evaluation record for
// each run and the monthly grade snapshot trail used for trend queries.
package ratings

import (
	"time"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/modules/products"
)

// Evaluation is one persisted grading run for a company.
type Evaluation struct {
	ID        string                `json:"id"`
	CompanyID string                `json:"company_id"`
	Breakdown domain.ScoreBreakdown `json:"breakdown"`
	Scope     domain.ScopeAggregate `json:"scope"`

	// Forecast is nil when the run skipped forecasting (short history,
	// explicit skip, or fit timeout).
	Forecast *domain.ForecastResult `json:"forecast,omitempty"`
	Matches  []products.MatchResult `json:"matches,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// GradeSnapshot is one month's grade for a company. At most one snapshot
// exists per (company, month); re-grading within a month overwrites it.
type GradeSnapshot struct {
	ID         int64        `json:"id"`
	CompanyID  string       `json:"company_id"`
	YearMonth  string       `json:"year_month"`
	Grade      domain.Grade `json:"grade"`
	TotalScore float64      `json:"total_score"`
	CreatedAt  time.Time    `json:"created_at"`
}
