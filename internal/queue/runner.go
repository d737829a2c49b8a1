// Package queue runs catalog-wide evaluation batches in the background.
//
// Batches are serialized: the catalog databases are shared and a second
// concurrent run would interleave benchmark refreshes and event streams,
// so Launch rejects a new run while one is active. Callers receive the
// run id immediately and poll Status for the outcome.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/esgrade/internal/modules/pipeline"
)

// Evaluator runs a full catalog evaluation under a caller-supplied run id.
type Evaluator interface {
	EvaluateBatch(ctx context.Context, runID string, opts pipeline.Options) (*pipeline.BatchResult, error)
}

var (
	// ErrRunInProgress is returned by Launch while another batch is executing.
	ErrRunInProgress = errors.New("a batch evaluation is already running")

	// ErrStopped is returned by Launch after the runner has been stopped.
	ErrStopped = errors.New("batch runner is stopped")
)

// RunState describes where a run is in its lifecycle.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunStatus is the externally visible record of a batch run.
// FinishedAt and Result stay nil while the run is executing.
type RunStatus struct {
	RunID      string                `json:"run_id"`
	State      RunState              `json:"state"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	Result     *pipeline.BatchResult `json:"result,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// maxRetained bounds the in-memory run history. Old completed runs fall
// off the back; the active run is never pruned.
const maxRetained = 32

// Runner executes batch evaluations one at a time and remembers recent runs.
type Runner struct {
	evaluator Evaluator
	log       zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	active  string
	runs    map[string]*RunStatus
	order   []string
	stopped bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner that executes batches via the given evaluator.
func NewRunner(evaluator Evaluator, log zerolog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		evaluator: evaluator,
		log:       log.With().Str("component", "batch_runner").Logger(),
		baseCtx:   ctx,
		cancel:    cancel,
		runs:      make(map[string]*RunStatus),
	}
}

// Launch starts a batch evaluation in the background and returns its run id.
// Returns ErrRunInProgress while a previous run is still executing.
func (r *Runner) Launch(opts pipeline.Options) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return "", ErrStopped
	}
	if r.active != "" {
		return "", ErrRunInProgress
	}

	runID := uuid.New().String()
	r.runs[runID] = &RunStatus{
		RunID:     runID,
		State:     RunStateRunning,
		StartedAt: time.Now().UTC(),
	}
	r.order = append(r.order, runID)
	r.prune()
	r.active = runID

	r.wg.Add(1)
	go r.execute(runID, opts)

	r.log.Info().Str("run_id", runID).Msg("Batch evaluation launched")
	return runID, nil
}

func (r *Runner) execute(runID string, opts pipeline.Options) {
	defer r.wg.Done()

	result, err := r.evaluator.EvaluateBatch(r.baseCtx, runID, opts)

	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.runs[runID]
	if status == nil {
		// Pruned while running should be impossible; tolerate it anyway.
		status = &RunStatus{RunID: runID, State: RunStateRunning}
		r.runs[runID] = status
		r.order = append(r.order, runID)
	}
	finished := time.Now().UTC()
	status.FinishedAt = &finished
	status.Result = result
	if err != nil {
		status.State = RunStateFailed
		status.Error = err.Error()
		r.log.Error().Err(err).Str("run_id", runID).Msg("Batch evaluation failed")
	} else {
		status.State = RunStateCompleted
		succeeded, failed := 0, 0
		if result != nil {
			succeeded, failed = result.Succeeded, result.Failed
		}
		r.log.Info().
			Str("run_id", runID).
			Int("succeeded", succeeded).
			Int("failed", failed).
			Msg("Batch evaluation finished")
	}
	r.active = ""
}

// Status returns a copy of the run's status. The second return is false
// when the run id is unknown or has been pruned.
func (r *Runner) Status(runID string) (RunStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.runs[runID]
	if !ok {
		return RunStatus{}, false
	}
	return *status, true
}

// Runs returns the retained run statuses, most recent first.
func (r *Runner) Runs() []RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RunStatus, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if status, ok := r.runs[r.order[i]]; ok {
			out = append(out, *status)
		}
	}
	return out
}

// Active returns the id of the currently executing run, if any.
func (r *Runner) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.active != ""
}

// Stop cancels any in-flight run and waits for it to finish. Subsequent
// Launch calls fail with ErrStopped.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.log.Info().Msg("Batch runner stopped")
}

// prune drops the oldest finished runs beyond the retention cap.
// Caller holds the lock.
func (r *Runner) prune() {
	for len(r.order) > maxRetained {
		oldest := r.order[0]
		if oldest == r.active {
			break
		}
		delete(r.runs, oldest)
		r.order = r.order[1:]
	}
}
