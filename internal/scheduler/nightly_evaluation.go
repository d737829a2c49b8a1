package scheduler

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/modules/pipeline"
	"github.com/aristath/esgrade/internal/queue"
)

// BatchLauncher starts a background catalog evaluation.
type BatchLauncher interface {
	Launch(opts pipeline.Options) (string, error)
}

// NightlyEvaluationJob re-grades the whole catalog overnight so scores,
// forecasts, and benchmarks track the latest imported data.
type NightlyEvaluationJob struct {
	launcher BatchLauncher
	log      zerolog.Logger
}

// NewNightlyEvaluationJob creates a new NightlyEvaluationJob.
func NewNightlyEvaluationJob(launcher BatchLauncher, log zerolog.Logger) *NightlyEvaluationJob {
	return &NightlyEvaluationJob{
		launcher: launcher,
		log:      log.With().Str("job", "nightly_evaluation").Logger(),
	}
}

// Name returns the job name.
func (j *NightlyEvaluationJob) Name() string {
	return "nightly_evaluation"
}

// Run launches the batch through the runner, so a manually triggered run
// that is still going simply wins over the scheduled one.
func (j *NightlyEvaluationJob) Run() error {
	runID, err := j.launcher.Launch(pipeline.Options{})
	if errors.Is(err, queue.ErrRunInProgress) {
		j.log.Warn().Msg("Skipping nightly evaluation, a batch is already running")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().Str("run_id", runID).Msg("Nightly evaluation launched")
	return nil
}
