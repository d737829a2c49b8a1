package reliability

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// MaintenanceService keeps the SQLite files healthy between backups.
type MaintenanceService struct {
	databases map[string]*sql.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceService creates a maintenance service over the given databases.
func NewMaintenanceService(databases map[string]*sql.DB, dataDir string, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// CheckpointAll runs a TRUNCATE checkpoint on every database so WAL files
// do not grow without bound. Individual failures are logged, not fatal:
// a busy writer defers the checkpoint to the next pass.
func (s *MaintenanceService) CheckpointAll(ctx context.Context) error {
	checkpointed := 0
	for name, conn := range s.databases {
		if _, err := conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			s.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
			continue
		}
		checkpointed++
	}

	s.log.Debug().
		Int("checkpointed", checkpointed).
		Int("total", len(s.databases)).
		Msg("WAL checkpoint pass completed")
	return nil
}

// IntegrityCheckAll verifies every database with PRAGMA integrity_check.
// The first corrupt database aborts with an error.
func (s *MaintenanceService) IntegrityCheckAll(ctx context.Context) error {
	for name, conn := range s.databases {
		var result string
		if err := conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
			return fmt.Errorf("failed to check %s integrity: %w", name, err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity check failed for %s: %s", name, result)
		}
		s.log.Debug().Str("database", name).Msg("Integrity verified")
	}
	return nil
}

// CheckDiskSpace fails when the data directory's filesystem is about to
// fill up. Thresholds below critical only log.
func (s *MaintenanceService) CheckDiskSpace() error {
	usage, err := disk.Usage(s.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	switch {
	case availableGB < 0.5:
		s.log.Error().Float64("available_gb", availableGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free on %s", availableGB, s.dataDir)
	case availableGB < 5.0:
		s.log.Error().Float64("available_gb", availableGB).Msg("Low disk space")
	case availableGB < 10.0:
		s.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
