package companies

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/modules/products"
)

// CatalogFile is the on-disk JSON catalog layout consumed by Import.
type CatalogFile struct {
	Companies []CatalogCompany       `json:"companies"`
	Products  []products.ProductSpec `json:"products"`
}

// CatalogCompany bundles a company with its supplier set and monthly
// score history.
type CatalogCompany struct {
	Company
	Suppliers []domain.SupplierRecord  `json:"suppliers,omitempty"`
	History   []domain.HistoricalPoint `json:"history,omitempty"`
}

// ImportSummary reports what an import wrote.
type ImportSummary struct {
	Companies     int `json:"companies"`
	Suppliers     int `json:"suppliers"`
	HistoryPoints int `json:"history_points"`
	Products      int `json:"products"`
}

// Importer loads catalog files into the reference databases. Catalogs are
// validated up front: a broken product registry or malformed company entry
// rejects the whole file before anything is written.
type Importer struct {
	companies *Repository
	history   *HistoryDB
	products  *products.Repository
	log       zerolog.Logger
}

// NewImporter creates a catalog importer.
func NewImporter(companies *Repository, history *HistoryDB, productRepo *products.Repository, log zerolog.Logger) *Importer {
	return &Importer{
		companies: companies,
		history:   history,
		products:  productRepo,
		log:       log.With().Str("component", "catalog_import").Logger(),
	}
}

// ImportFile reads and imports a catalog JSON file.
func (i *Importer) ImportFile(path string) (*ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file CatalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return i.Import(file)
}

// Import validates and writes the catalog.
func (i *Importer) Import(file CatalogFile) (*ImportSummary, error) {
	if err := products.ValidateCatalog(file.Products); err != nil {
		return nil, err
	}
	if err := validateCompanies(file.Companies); err != nil {
		return nil, err
	}

	// A file without a products section leaves the existing catalog alone,
	// so company and product catalogs can live in separate files.
	if len(file.Products) > 0 {
		if err := i.products.ReplaceCatalog(file.Products); err != nil {
			return nil, err
		}
	}

	summary := &ImportSummary{Products: len(file.Products)}
	for _, entry := range file.Companies {
		if err := i.companies.Upsert(entry.Company); err != nil {
			return summary, err
		}
		if err := i.companies.ReplaceSuppliers(entry.ID, entry.Suppliers); err != nil {
			return summary, err
		}
		if len(entry.History) > 0 {
			if err := i.history.UpsertSeries(entry.ID, entry.History); err != nil {
				return summary, err
			}
		}

		summary.Companies++
		summary.Suppliers += len(entry.Suppliers)
		summary.HistoryPoints += len(entry.History)
	}

	i.log.Info().
		Int("companies", summary.Companies).
		Int("suppliers", summary.Suppliers).
		Int("history_points", summary.HistoryPoints).
		Int("products", summary.Products).
		Msg("Imported catalog")

	return summary, nil
}

func validateCompanies(entries []CatalogCompany) error {
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.ID == "" || entry.Name == "" {
			return domain.ValidationError{
				Subject: entry.ID,
				Field:   "company",
				Message: fmt.Sprintf("entry %q needs both id and name", entry.Name),
			}
		}
		if seen[entry.ID] {
			return domain.ValidationError{
				Subject: entry.ID,
				Field:   "company",
				Message: "duplicate company id",
			}
		}
		seen[entry.ID] = true

		for _, pillar := range domain.Pillars {
			for name, value := range entry.Record().PillarIndicators(pillar) {
				if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value > 100 {
					return domain.ValidationError{
						Subject: entry.ID,
						Field:   name,
						Message: fmt.Sprintf("indicator value %v is outside [0,100]", value),
					}
				}
			}
		}

		for _, p := range entry.History {
			if err := validatePoint(entry.ID, p); err != nil {
				return err
			}
		}
		supplierIDs := make(map[string]bool, len(entry.Suppliers))
		for _, s := range entry.Suppliers {
			if s.ID == "" {
				return domain.ValidationError{
					Subject: entry.ID,
					Field:   "supplier",
					Message: fmt.Sprintf("supplier %q has no id", s.Name),
				}
			}
			if supplierIDs[s.ID] {
				return domain.ValidationError{
					Subject: entry.ID,
					Field:   "supplier",
					Message: fmt.Sprintf("duplicate supplier id %s", s.ID),
				}
			}
			supplierIDs[s.ID] = true
		}
	}
	return nil
}
