package companies

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/domain"
)

// HistoryDB provides access to the standalone monthly score history
// database. The file is shared with external collection tooling, so it is
// opened with its own driver and schema-ensured on open.
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB wraps an already-open history database handle.
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// OpenHistoryDB opens (creating if needed) the history database at path
// and makes sure the schema exists.
func OpenHistoryDB(path string, log zerolog.Logger) (*HistoryDB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	h := NewHistoryDB(db, log)
	if err := h.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// EnsureSchema creates the history table when missing.
func (h *HistoryDB) EnsureSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS esg_history (
			company_id TEXT NOT NULL,
			year_month TEXT NOT NULL,
			e_score REAL NOT NULL,
			s_score REAL NOT NULL,
			g_score REAL NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (company_id, year_month)
		);
		CREATE INDEX IF NOT EXISTS idx_history_company ON esg_history(company_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return nil
}

// Close closes the underlying handle.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Conn exposes the underlying handle for backup and maintenance tooling.
func (h *HistoryDB) Conn() *sql.DB {
	return h.db
}

// GetSeries fetches a company's series in chronological order. A positive
// limit keeps only the most recent periods.
func (h *HistoryDB) GetSeries(companyID string, limit int) (domain.HistoricalSeries, error) {
	query := `
		SELECT year_month, e_score, s_score, g_score
		FROM esg_history
		WHERE company_id = ?
		ORDER BY year_month DESC
	`
	args := []interface{}{companyID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var series domain.HistoricalSeries
	for rows.Next() {
		var p domain.HistoricalPoint
		if err := rows.Scan(&p.YearMonth, &p.E, &p.S, &p.G); err != nil {
			return nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		series = append(series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	// Newest-first from the index; callers work oldest-first.
	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}

	return series, nil
}

// LatestPeriod returns the most recent recorded period, or "" when the
// company has no history.
func (h *HistoryDB) LatestPeriod(companyID string) (string, error) {
	var period sql.NullString
	err := h.db.QueryRow(
		"SELECT MAX(year_month) FROM esg_history WHERE company_id = ?", companyID,
	).Scan(&period)
	if err != nil {
		return "", fmt.Errorf("failed to query latest period: %w", err)
	}
	return period.String, nil
}

// HasHistory checks whether any periods are recorded for the company.
func (h *HistoryDB) HasHistory(companyID string) (bool, error) {
	var count int
	err := h.db.QueryRow(
		"SELECT COUNT(*) FROM esg_history WHERE company_id = ?", companyID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check history: %w", err)
	}
	return count > 0, nil
}

// UpsertSeries writes the points in one transaction, replacing any
// existing rows for the same periods.
func (h *HistoryDB) UpsertSeries(companyID string, series domain.HistoricalSeries) error {
	for _, p := range series {
		if err := validatePoint(companyID, p); err != nil {
			return err
		}
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO esg_history
		(company_id, year_month, e_score, s_score, g_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range series {
		if _, err := stmt.Exec(companyID, p.YearMonth, p.E, p.S, p.G, now); err != nil {
			return fmt.Errorf("failed to insert history point %s: %w", p.YearMonth, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Debug().
		Str("company_id", companyID).
		Int("points", len(series)).
		Msg("Upserted history series")

	return nil
}

// UpsertPoint records a single observed month.
func (h *HistoryDB) UpsertPoint(companyID string, point domain.HistoricalPoint) error {
	return h.UpsertSeries(companyID, domain.HistoricalSeries{point})
}

func validatePoint(companyID string, p domain.HistoricalPoint) error {
	if _, err := time.Parse("2006-01", p.YearMonth); err != nil {
		return domain.ValidationError{
			Subject: companyID,
			Field:   "year_month",
			Message: fmt.Sprintf("period %q must be formatted as YYYY-MM", p.YearMonth),
		}
	}
	for _, v := range []float64{p.E, p.S, p.G} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
			return domain.ValidationError{
				Subject: companyID,
				Field:   "history",
				Message: fmt.Sprintf("score %v at %s is outside [0,100]", v, p.YearMonth),
			}
		}
	}
	return nil
}
