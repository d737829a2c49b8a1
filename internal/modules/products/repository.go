package products

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/database"
)

// Repository stores the product catalog in the catalog database.
type Repository struct {
	catalogDB *sql.DB
	log       zerolog.Logger
}

// NewRepository creates a product repository.
func NewRepository(catalogDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		catalogDB: catalogDB,
		log:       log.With().Str("repo", "products").Logger(),
	}
}

const productColumns = "id, name, provider, base_rate, esg_discount, max_amount, term_months, conditions, active"

// All returns every product ordered by id, active or not.
func (r *Repository) All() ([]ProductSpec, error) {
	return r.query("SELECT " + productColumns + " FROM products ORDER BY id")
}

// Active returns the offerable catalog ordered by id.
func (r *Repository) Active() ([]ProductSpec, error) {
	return r.query("SELECT " + productColumns + " FROM products WHERE active = 1 ORDER BY id")
}

// Get returns one product, or nil when the id is unknown.
func (r *Repository) Get(id string) (*ProductSpec, error) {
	row := r.catalogDB.QueryRow("SELECT "+productColumns+" FROM products WHERE id = ?", id)

	product, err := scanProduct(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", id, err)
	}
	return &product, nil
}

// Upsert validates and writes one product, preserving created_at on
// replace.
func (r *Repository) Upsert(p ProductSpec) error {
	if err := p.Validate(); err != nil {
		return err
	}

	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions for %s: %w", p.ID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.catalogDB.Exec(`
		INSERT INTO products (id, name, provider, base_rate, esg_discount, max_amount, term_months, conditions, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			provider = excluded.provider,
			base_rate = excluded.base_rate,
			esg_discount = excluded.esg_discount,
			max_amount = excluded.max_amount,
			term_months = excluded.term_months,
			conditions = excluded.conditions,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Provider, p.BaseRate, boolToInt(p.ESGDiscount), p.MaxAmount, p.TermMonths, string(conditions), boolToInt(p.Active), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}

	return nil
}

// ReplaceCatalog validates the incoming catalog and swaps it in whole
// inside one transaction.
func (r *Repository) ReplaceCatalog(catalog []ProductSpec) error {
	if err := ValidateCatalog(catalog); err != nil {
		return err
	}

	err := database.WithTransaction(r.catalogDB, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM products"); err != nil {
			return fmt.Errorf("failed to clear products: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339)
		for _, p := range catalog {
			conditions, err := json.Marshal(p.Conditions)
			if err != nil {
				return fmt.Errorf("failed to encode conditions for %s: %w", p.ID, err)
			}
			_, err = tx.Exec(`
				INSERT INTO products (id, name, provider, base_rate, esg_discount, max_amount, term_months, conditions, active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, p.ID, p.Name, p.Provider, p.BaseRate, boolToInt(p.ESGDiscount), p.MaxAmount, p.TermMonths, string(conditions), boolToInt(p.Active), now, now)
			if err != nil {
				return fmt.Errorf("failed to insert product %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Int("products", len(catalog)).Msg("Replaced product catalog")
	return nil
}

func (r *Repository) query(stmt string) ([]ProductSpec, error) {
	rows, err := r.catalogDB.Query(stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var catalog []ProductSpec
	for rows.Next() {
		product, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		catalog = append(catalog, product)
	}
	return catalog, rows.Err()
}

func scanProduct(scan func(...interface{}) error) (ProductSpec, error) {
	var (
		p           ProductSpec
		provider    sql.NullString
		esgDiscount int
		active      int
		conditions  string
	)
	err := scan(&p.ID, &p.Name, &provider, &p.BaseRate, &esgDiscount, &p.MaxAmount, &p.TermMonths, &conditions, &active)
	if err != nil {
		return ProductSpec{}, err
	}

	p.Provider = provider.String
	p.ESGDiscount = esgDiscount != 0
	p.Active = active != 0
	if err := json.Unmarshal([]byte(conditions), &p.Conditions); err != nil {
		return ProductSpec{}, fmt.Errorf("conditions for %s: %w", p.ID, err)
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
