// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/config"
	"github.com/aristath/esgrade/internal/scheduler"
)

// RegisterJobs creates the scheduled jobs and binds them to their cron
// specs. Returns JobInstances for manual triggering via API.
// The scheduler is created stopped; the caller starts it.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		Scheduler: scheduler.New(log),
	}

	// ==========================================
	// Job 1: Nightly Batch Evaluation
	// ==========================================
	instances.NightlyEvaluation = scheduler.NewNightlyEvaluationJob(container.Runner, log)
	if err := instances.Scheduler.AddJob(cfg.EvaluationSchedule, instances.NightlyEvaluation); err != nil {
		return nil, fmt.Errorf("failed to schedule nightly evaluation: %w", err)
	}

	// ==========================================
	// Job 2: WAL Checkpoint
	// ==========================================
	instances.WALCheckpoint = scheduler.NewWALCheckpointJob(container.Maintenance, log)
	if err := instances.Scheduler.AddJob(cfg.CheckpointSchedule, instances.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to schedule WAL checkpoint: %w", err)
	}

	// ==========================================
	// Job 3: Storage Backup (only with credentials)
	// ==========================================
	if container.BackupService != nil {
		instances.StorageBackup = scheduler.NewStorageBackupJob(container.BackupService, container.Maintenance, log)
		if err := instances.Scheduler.AddJob(cfg.BackupSchedule, instances.StorageBackup); err != nil {
			return nil, fmt.Errorf("failed to schedule storage backup: %w", err)
		}
	}

	log.Info().
		Str("evaluation", cfg.EvaluationSchedule).
		Str("checkpoint", cfg.CheckpointSchedule).
		Bool("backup", instances.StorageBackup != nil).
		Msg("Scheduled jobs registered")

	return instances, nil
}
