package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BackupRunner uploads an archive of the databases and rotates old ones.
type BackupRunner interface {
	Run(ctx context.Context) error
	Rotate(ctx context.Context) error
}

// IntegrityChecker verifies the databases before they are archived.
type IntegrityChecker interface {
	IntegrityCheckAll(ctx context.Context) error
}

// StorageBackupJob ships a weekly archive of the databases to the bucket.
// Only constructed when backup credentials are configured.
type StorageBackupJob struct {
	backups   BackupRunner
	integrity IntegrityChecker
	log       zerolog.Logger
}

// NewStorageBackupJob creates a new StorageBackupJob.
func NewStorageBackupJob(backups BackupRunner, integrity IntegrityChecker, log zerolog.Logger) *StorageBackupJob {
	return &StorageBackupJob{
		backups:   backups,
		integrity: integrity,
		log:       log.With().Str("job", "storage_backup").Logger(),
	}
}

// Name returns the job name.
func (j *StorageBackupJob) Name() string {
	return "storage_backup"
}

// Run verifies integrity, uploads the archive, then rotates. A corrupt
// database aborts the upload: archiving it would poison the restore chain.
func (j *StorageBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if err := j.integrity.IntegrityCheckAll(ctx); err != nil {
		return fmt.Errorf("pre-backup integrity check failed: %w", err)
	}
	if err := j.backups.Run(ctx); err != nil {
		return err
	}
	if err := j.backups.Rotate(ctx); err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
