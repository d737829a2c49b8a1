package ratings

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/modules/products"
)

// evaluationColumns is the column list for the evaluations table. Order
// must match scanEvaluation.
const evaluationColumns = `id, company_id, e_score, s_score, g_score, total_score, grade,
	discount_pct, scope3_emissions, scope3_risk, supplier_count,
	missing_indicators, forecast, matches, created_at`

// Repository stores evaluation runs in the ratings database. The table is
// append-only; runs are never updated after the fact.
type Repository struct {
	ratingsDB *sql.DB
	log       zerolog.Logger
}

// NewRepository creates an evaluation repository.
func NewRepository(ratingsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ratingsDB: ratingsDB,
		log:       log.With().Str("repo", "evaluations").Logger(),
	}
}

// Record persists an evaluation run and returns its id. A missing id is
// assigned a fresh uuid; a zero CreatedAt is stamped with the current time.
func (r *Repository) Record(eval Evaluation) (string, error) {
	if eval.CompanyID == "" {
		return "", domain.ValidationError{
			Subject: eval.ID,
			Field:   "company_id",
			Message: "evaluation needs a company id",
		}
	}
	if !eval.Breakdown.Grade.Known() {
		return "", domain.ValidationError{
			Subject: eval.CompanyID,
			Field:   "grade",
			Message: fmt.Sprintf("unknown grade %q", eval.Breakdown.Grade),
		}
	}

	if eval.ID == "" {
		eval.ID = uuid.New().String()
	}
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = time.Now().UTC()
	}

	missing, err := json.Marshal(missingOrEmpty(eval.Breakdown.MissingIndicators))
	if err != nil {
		return "", fmt.Errorf("failed to encode missing indicators: %w", err)
	}

	// Absent payloads stay NULL so a skipped forecast is distinguishable
	// from an empty one.
	var forecast, matches sql.NullString
	if eval.Forecast != nil {
		forecast, err = jsonNullString(eval.Forecast)
		if err != nil {
			return "", fmt.Errorf("failed to encode forecast: %w", err)
		}
	}
	if eval.Matches != nil {
		matches, err = jsonNullString(eval.Matches)
		if err != nil {
			return "", fmt.Errorf("failed to encode matches: %w", err)
		}
	}

	query := `
		INSERT INTO evaluations
		(id, company_id, e_score, s_score, g_score, total_score, grade,
		 discount_pct, scope3_emissions, scope3_risk, supplier_count,
		 missing_indicators, forecast, matches, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.ratingsDB.Exec(query,
		eval.ID,
		eval.CompanyID,
		eval.Breakdown.E,
		eval.Breakdown.S,
		eval.Breakdown.G,
		eval.Breakdown.Total,
		string(eval.Breakdown.Grade),
		eval.Breakdown.DiscountPct,
		eval.Scope.Scope3Emissions,
		eval.Scope.RiskScore,
		eval.Scope.SupplierCount,
		string(missing),
		forecast,
		matches,
		eval.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record evaluation: %w", err)
	}

	r.log.Info().
		Str("evaluation_id", eval.ID).
		Str("company_id", eval.CompanyID).
		Str("grade", string(eval.Breakdown.Grade)).
		Float64("total", eval.Breakdown.Total).
		Msg("Recorded evaluation")

	return eval.ID, nil
}

// Get returns an evaluation by run id, or nil when it does not exist.
func (r *Repository) Get(id string) (*Evaluation, error) {
	row := r.ratingsDB.QueryRow(
		"SELECT "+evaluationColumns+" FROM evaluations WHERE id = ?", id)

	eval, err := scanEvaluation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	return &eval, nil
}

// Latest returns the most recent evaluation for a company, or nil when the
// company has never been graded.
func (r *Repository) Latest(companyID string) (*Evaluation, error) {
	row := r.ratingsDB.QueryRow(`
		SELECT `+evaluationColumns+` FROM evaluations
		WHERE company_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, companyID)

	eval, err := scanEvaluation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest evaluation: %w", err)
	}

	return &eval, nil
}

// History returns a company's evaluations, most recent first. A limit of
// zero or less returns all of them.
func (r *Repository) History(companyID string, limit int) ([]Evaluation, error) {
	query := "SELECT " + evaluationColumns + ` FROM evaluations
		WHERE company_id = ?
		ORDER BY created_at DESC`
	args := []interface{}{companyID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.ratingsDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation history: %w", err)
	}
	defer rows.Close()

	var evals []Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, eval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}

	return evals, nil
}

// InRange returns a company's evaluations inside [start, end], oldest first.
func (r *Repository) InRange(companyID string, start, end time.Time) ([]Evaluation, error) {
	rows, err := r.ratingsDB.Query(`
		SELECT `+evaluationColumns+` FROM evaluations
		WHERE company_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC
	`, companyID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations in range: %w", err)
	}
	defer rows.Close()

	var evals []Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, eval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}

	return evals, nil
}

// Count returns the total number of recorded evaluations.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.ratingsDB.QueryRow("SELECT COUNT(*) FROM evaluations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count evaluations: %w", err)
	}
	return n, nil
}

func scanEvaluation(scan func(...interface{}) error) (Evaluation, error) {
	var eval Evaluation
	var grade, missing, createdAt string
	var forecast, matches sql.NullString

	err := scan(
		&eval.ID,
		&eval.CompanyID,
		&eval.Breakdown.E,
		&eval.Breakdown.S,
		&eval.Breakdown.G,
		&eval.Breakdown.Total,
		&grade,
		&eval.Breakdown.DiscountPct,
		&eval.Scope.Scope3Emissions,
		&eval.Scope.RiskScore,
		&eval.Scope.SupplierCount,
		&missing,
		&forecast,
		&matches,
		&createdAt,
	)
	if err != nil {
		return eval, err
	}

	eval.Breakdown.Grade = domain.Grade(grade)

	var missingNames []string
	if err := json.Unmarshal([]byte(missing), &missingNames); err != nil {
		return eval, fmt.Errorf("failed to decode missing indicators: %w", err)
	}
	if len(missingNames) > 0 {
		eval.Breakdown.MissingIndicators = missingNames
	}

	if forecast.Valid {
		var f domain.ForecastResult
		if err := json.Unmarshal([]byte(forecast.String), &f); err != nil {
			return eval, fmt.Errorf("failed to decode forecast: %w", err)
		}
		eval.Forecast = &f
	}
	if matches.Valid {
		var m []products.MatchResult
		if err := json.Unmarshal([]byte(matches.String), &m); err != nil {
			return eval, fmt.Errorf("failed to decode matches: %w", err)
		}
		eval.Matches = m
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return eval, fmt.Errorf("failed to parse created_at: %w", err)
	}
	eval.CreatedAt = t

	return eval, nil
}

func missingOrEmpty(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func jsonNullString(v interface{}) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
