package products

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/domain"
)

func newCatalogConn(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "catalog.db"),
		Profile: database.ProfileStandard,
		Name:    "catalog",
	})
	require.NoError(t, err, "catalog database should open")
	require.NoError(t, db.Migrate(), "catalog schema should apply")
	t.Cleanup(func() { _ = db.Close() })

	return db.Conn()
}

func TestRepository_UpsertAndGet(t *testing.T) {
	repo := NewRepository(newCatalogConn(t), zerolog.Nop())
	product := sampleCatalog()[0]

	require.NoError(t, repo.Upsert(product))

	loaded, err := repo.Get("loan-green")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, product.Name, loaded.Name)
	assert.Equal(t, product.BaseRate, loaded.BaseRate)
	assert.True(t, loaded.ESGDiscount)
	assert.True(t, loaded.Active)
	assert.Equal(t, product.Conditions, loaded.Conditions, "conditions survive the JSON round trip")
}

func TestRepository_GetMissingProduct(t *testing.T) {
	repo := NewRepository(newCatalogConn(t), zerolog.Nop())

	loaded, err := repo.Get("loan-unknown")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRepository_UpsertRejectsInvalidProduct(t *testing.T) {
	repo := NewRepository(newCatalogConn(t), zerolog.Nop())

	err := repo.Upsert(ProductSpec{ID: "bad", Name: "Bad", BaseRate: 3.0,
		Conditions: []Condition{{Name: "no_such_condition", Threshold: 1}}})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestRepository_ActiveFiltersRetiredProducts(t *testing.T) {
	repo := NewRepository(newCatalogConn(t), zerolog.Nop())
	require.NoError(t, repo.ReplaceCatalog(sampleCatalog()))

	all, err := repo.All()
	require.NoError(t, err)
	assert.Len(t, all, 5)

	active, err := repo.Active()
	require.NoError(t, err)
	assert.Len(t, active, 4)
	for _, p := range active {
		assert.True(t, p.Active)
		assert.NotEqual(t, "loan-legacy", p.ID)
	}
}

func TestRepository_ReplaceCatalogSwapsWholesale(t *testing.T) {
	repo := NewRepository(newCatalogConn(t), zerolog.Nop())
	require.NoError(t, repo.ReplaceCatalog(sampleCatalog()))

	replacement := []ProductSpec{{ID: "loan-only", Name: "Only", BaseRate: 3.0, Active: true}}
	require.NoError(t, repo.ReplaceCatalog(replacement))

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "loan-only", all[0].ID)
}

func TestRepository_ReplaceCatalogRejectsInvalidWithoutWriting(t *testing.T) {
	repo := NewRepository(newCatalogConn(t), zerolog.Nop())
	require.NoError(t, repo.ReplaceCatalog(sampleCatalog()))

	bad := []ProductSpec{
		{ID: "dup", Name: "First", BaseRate: 3.0},
		{ID: "dup", Name: "Second", BaseRate: 3.1},
	}
	err := repo.ReplaceCatalog(bad)
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))

	all, err := repo.All()
	require.NoError(t, err)
	assert.Len(t, all, 5, "a rejected replacement must leave the catalog untouched")
}
