// Package testing provides shared helpers for tests that need real databases.
package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/modules/companies"
)

// profileFor maps database names onto the profiles production uses for them.
func profileFor(name string) database.DatabaseProfile {
	switch name {
	case "ratings":
		return database.ProfileLedger
	case "cache":
		return database.ProfileCache
	default:
		return database.ProfileStandard
	}
}

// NewTestDB creates a temp-file SQLite database with the schema for the
// given name applied. Returns the database and an idempotent cleanup
// function; unknown names get an empty database.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: profileFor(name),
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			t.Logf("Warning: Failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// NewTestHistoryDB creates a per-company history store in a temp directory.
func NewTestHistoryDB(t *testing.T) (*companies.HistoryDB, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "test_history_*")
	if err != nil {
		t.Fatalf("Failed to create temporary history directory: %v", err)
	}

	db, err := companies.OpenHistoryDB(filepath.Join(dir, "history.db"), zerolog.Nop())
	if err != nil {
		_ = os.RemoveAll(dir)
		t.Fatalf("Failed to open test history database: %v", err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test history database: %v", err)
		}
		if err := os.RemoveAll(dir); err != nil {
			t.Logf("Warning: Failed to remove temporary history directory: %v", err)
		}
	}
}
