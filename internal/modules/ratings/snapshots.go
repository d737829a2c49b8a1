package ratings

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/domain"
)

// SnapshotRepository keeps one grade row per company per month. Pipelines
// write a snapshot after every run; within a month the latest run wins.
type SnapshotRepository struct {
	ratingsDB *sql.DB
	log       zerolog.Logger
}

// NewSnapshotRepository creates a grade snapshot repository.
func NewSnapshotRepository(ratingsDB *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		ratingsDB: ratingsDB,
		log:       log.With().Str("repo", "grade_snapshots").Logger(),
	}
}

// Record upserts the grade for (companyID, yearMonth).
func (r *SnapshotRepository) Record(companyID, yearMonth string, grade domain.Grade, totalScore float64) error {
	if companyID == "" {
		return domain.ValidationError{
			Field:   "company_id",
			Message: "snapshot needs a company id",
		}
	}
	if _, err := time.Parse("2006-01", yearMonth); err != nil {
		return domain.ValidationError{
			Subject: companyID,
			Field:   "year_month",
			Message: fmt.Sprintf("period %q must be formatted as YYYY-MM", yearMonth),
		}
	}
	if !grade.Known() {
		return domain.ValidationError{
			Subject: companyID,
			Field:   "grade",
			Message: fmt.Sprintf("unknown grade %q", grade),
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO grade_snapshots (company_id, year_month, grade, total_score, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id, year_month) DO UPDATE SET
			grade = excluded.grade,
			total_score = excluded.total_score,
			created_at = excluded.created_at
	`

	if _, err := r.ratingsDB.Exec(query, companyID, yearMonth, string(grade), totalScore, now); err != nil {
		return fmt.Errorf("failed to record grade snapshot: %w", err)
	}

	r.log.Debug().
		Str("company_id", companyID).
		Str("year_month", yearMonth).
		Str("grade", string(grade)).
		Msg("Recorded grade snapshot")

	return nil
}

// For returns a company's snapshots in chronological order.
func (r *SnapshotRepository) For(companyID string) ([]GradeSnapshot, error) {
	rows, err := r.ratingsDB.Query(`
		SELECT id, company_id, year_month, grade, total_score, created_at
		FROM grade_snapshots
		WHERE company_id = ?
		ORDER BY year_month ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grade snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []GradeSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grade snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grade snapshots: %w", err)
	}

	return snapshots, nil
}

// Latest returns the most recent snapshot for a company, or nil when the
// company has no grade history yet.
func (r *SnapshotRepository) Latest(companyID string) (*GradeSnapshot, error) {
	row := r.ratingsDB.QueryRow(`
		SELECT id, company_id, year_month, grade, total_score, created_at
		FROM grade_snapshots
		WHERE company_id = ?
		ORDER BY year_month DESC
		LIMIT 1
	`, companyID)

	snap, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest grade snapshot: %w", err)
	}

	return &snap, nil
}

func scanSnapshot(scan func(...interface{}) error) (GradeSnapshot, error) {
	var snap GradeSnapshot
	var grade, createdAt string

	if err := scan(&snap.ID, &snap.CompanyID, &snap.YearMonth, &grade, &snap.TotalScore, &createdAt); err != nil {
		return snap, err
	}
	snap.Grade = domain.Grade(grade)

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return snap, fmt.Errorf("failed to parse created_at: %w", err)
	}
	snap.CreatedAt = t

	return snap, nil
}
