package forecast

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/domain"
)

// Fingerprint identifies a historical series for cache freshness checks.
// Any change to the series (a new period, a revised value) changes it.
func Fingerprint(series domain.HistoricalSeries) string {
	h := sha256.New()
	for _, p := range series {
		fmt.Fprintf(h, "%s|%.6f|%.6f|%.6f\n", p.YearMonth, p.E, p.S, p.G)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Repository persists trained model states in the cache database, keyed by
// company and stamped with the fingerprint of the series they were trained
// on. States are disposable: anything here can be refitted from history.
type Repository struct {
	cacheDB *sql.DB
	log     zerolog.Logger
}

// NewRepository creates a model state repository.
func NewRepository(cacheDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		cacheDB: cacheDB,
		log:     log.With().Str("repo", "forecast").Logger(),
	}
}

// Save stores (or replaces) a company's trained model. fingerprint is the
// Fingerprint of the stored series the fit consumed.
func (r *Repository) Save(companyID, fingerprint string, model *TrainedModel) error {
	data, err := model.EncodeState()
	if err != nil {
		return fmt.Errorf("failed to encode model for %s: %w", companyID, err)
	}

	_, err = r.cacheDB.Exec(`
		INSERT INTO model_states (company_id, fingerprint, state, seed, history_len, trained_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			state = excluded.state,
			seed = excluded.seed,
			history_len = excluded.history_len,
			trained_at = excluded.trained_at
	`, companyID, fingerprint, data, model.Seed(), model.HistoryLen(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save model state for %s: %w", companyID, err)
	}

	return nil
}

// Get loads a company's trained model, or nil when none is cached. A
// blob that fails to decode is treated as absent and cleaned up, since
// refitting is always possible.
func (r *Repository) Get(companyID string) (*TrainedModel, error) {
	var data []byte
	err := r.cacheDB.QueryRow(
		"SELECT state FROM model_states WHERE company_id = ?", companyID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model state for %s: %w", companyID, err)
	}

	return r.decode(companyID, data)
}

// GetMatching loads a company's trained model only when it was fitted on a
// series with the given fingerprint. A cached model trained on different
// history reads back as nil, forcing a refit.
func (r *Repository) GetMatching(companyID, fingerprint string) (*TrainedModel, error) {
	var data []byte
	err := r.cacheDB.QueryRow(
		"SELECT state FROM model_states WHERE company_id = ? AND fingerprint = ?",
		companyID, fingerprint,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model state for %s: %w", companyID, err)
	}

	return r.decode(companyID, data)
}

func (r *Repository) decode(companyID string, data []byte) (*TrainedModel, error) {
	model, err := DecodeState(data)
	if err != nil {
		r.log.Warn().Err(err).Str("company_id", companyID).Msg("Dropping undecodable model state")
		_ = r.Delete(companyID)
		return nil, nil
	}
	return model, nil
}

// Delete removes a company's cached model.
func (r *Repository) Delete(companyID string) error {
	if _, err := r.cacheDB.Exec("DELETE FROM model_states WHERE company_id = ?", companyID); err != nil {
		return fmt.Errorf("failed to delete model state for %s: %w", companyID, err)
	}
	return nil
}

// Purge drops every cached model, forcing refits.
func (r *Repository) Purge() error {
	if _, err := r.cacheDB.Exec("DELETE FROM model_states"); err != nil {
		return fmt.Errorf("failed to purge model states: %w", err)
	}
	return nil
}

// Count returns how many models are cached.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.cacheDB.QueryRow("SELECT COUNT(*) FROM model_states").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count model states: %w", err)
	}
	return n, nil
}
