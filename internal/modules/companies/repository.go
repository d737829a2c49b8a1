package companies

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/domain"
)

// Repository stores companies and their supplier sets in the catalog
// database.
type Repository struct {
	catalogDB *sql.DB
	log       zerolog.Logger
}

// NewRepository creates a company repository.
func NewRepository(catalogDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		catalogDB: catalogDB,
		log:       log.With().Str("repo", "companies").Logger(),
	}
}

// indicatorsDoc is the JSON layout of the indicators column.
type indicatorsDoc struct {
	Environmental map[string]float64 `json:"environmental,omitempty"`
	Social        map[string]float64 `json:"social,omitempty"`
	Governance    map[string]float64 `json:"governance,omitempty"`
}

// Get returns one company, or nil when the id is unknown.
func (r *Repository) Get(id string) (*Company, error) {
	row := r.catalogDB.QueryRow(
		"SELECT id, name, industry, size_class, country, indicators FROM companies WHERE id = ?", id)

	company, err := scanCompany(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query company %s: %w", id, err)
	}
	return &company, nil
}

// All returns every company ordered by id.
func (r *Repository) All() ([]Company, error) {
	rows, err := r.catalogDB.Query(
		"SELECT id, name, industry, size_class, country, indicators FROM companies ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var all []Company
	for rows.Next() {
		company, err := scanCompany(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		all = append(all, company)
	}
	return all, rows.Err()
}

// Count returns the catalog size.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.catalogDB.QueryRow("SELECT COUNT(*) FROM companies").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return n, nil
}

// Upsert writes one company, preserving created_at on replace.
func (r *Repository) Upsert(c Company) error {
	if c.ID == "" || c.Name == "" {
		return domain.ValidationError{
			Subject: c.ID,
			Field:   "company",
			Message: "id and name are required",
		}
	}

	indicators, err := json.Marshal(indicatorsDoc{
		Environmental: c.Environmental,
		Social:        c.Social,
		Governance:    c.Governance,
	})
	if err != nil {
		return fmt.Errorf("failed to encode indicators for %s: %w", c.ID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.catalogDB.Exec(`
		INSERT INTO companies (id, name, industry, size_class, country, indicators, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			industry = excluded.industry,
			size_class = excluded.size_class,
			country = excluded.country,
			indicators = excluded.indicators,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, defaulted(c.Industry, "general"), defaulted(c.SizeClass, "mid"), c.Country, string(indicators), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert company %s: %w", c.ID, err)
	}

	return nil
}

// SuppliersFor returns the company's suppliers ordered by id.
func (r *Repository) SuppliersFor(companyID string) ([]domain.SupplierRecord, error) {
	rows, err := r.catalogDB.Query(`
		SELECT id, name, tier, location, emissions, esg_score, spend_weight
		FROM suppliers WHERE company_id = ? ORDER BY id
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers for %s: %w", companyID, err)
	}
	defer rows.Close()

	var suppliers []domain.SupplierRecord
	for rows.Next() {
		var (
			s        domain.SupplierRecord
			location sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Tier, &location, &s.Emissions, &s.ESGScore, &s.SpendWeight); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		s.Location = location.String
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// ReplaceSuppliers swaps the company's supplier set in one transaction.
func (r *Repository) ReplaceSuppliers(companyID string, suppliers []domain.SupplierRecord) error {
	return database.WithTransaction(r.catalogDB, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM suppliers WHERE company_id = ?", companyID); err != nil {
			return fmt.Errorf("failed to clear suppliers for %s: %w", companyID, err)
		}

		now := time.Now().UTC().Format(time.RFC3339)
		for _, s := range suppliers {
			if s.ID == "" {
				return domain.ValidationError{
					Subject: companyID,
					Field:   "supplier",
					Message: fmt.Sprintf("supplier %q has no id", s.Name),
				}
			}
			_, err := tx.Exec(`
				INSERT INTO suppliers (id, company_id, name, tier, location, emissions, esg_score, spend_weight, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, s.ID, companyID, s.Name, s.Tier, s.Location, s.Emissions, s.ESGScore, s.SpendWeight, now)
			if err != nil {
				return fmt.Errorf("failed to insert supplier %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

func scanCompany(scan func(...interface{}) error) (Company, error) {
	var (
		c          Company
		country    sql.NullString
		indicators string
	)
	if err := scan(&c.ID, &c.Name, &c.Industry, &c.SizeClass, &country, &indicators); err != nil {
		return Company{}, err
	}

	c.Country = country.String
	var doc indicatorsDoc
	if err := json.Unmarshal([]byte(indicators), &doc); err != nil {
		return Company{}, fmt.Errorf("indicators for %s: %w", c.ID, err)
	}
	c.Environmental = doc.Environmental
	c.Social = doc.Social
	c.Governance = doc.Governance
	return c, nil
}

func defaulted(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
