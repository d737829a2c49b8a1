package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Maintainer is the slice of the maintenance service the hourly job uses.
type Maintainer interface {
	CheckpointAll(ctx context.Context) error
	CheckDiskSpace() error
}

// WALCheckpointJob truncates the write-ahead logs every hour and keeps an
// eye on free disk space while it is at it.
type WALCheckpointJob struct {
	maintenance Maintainer
	log         zerolog.Logger
}

// NewWALCheckpointJob creates a new WALCheckpointJob.
func NewWALCheckpointJob(maintenance Maintainer, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		maintenance: maintenance,
		log:         log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name.
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the checkpoint pass.
func (j *WALCheckpointJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := j.maintenance.CheckpointAll(ctx); err != nil {
		return err
	}
	if err := j.maintenance.CheckDiskSpace(); err != nil {
		j.log.Error().Err(err).Msg("Disk space check failed")
	}
	return nil
}
