package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/esgrade/internal/events"
)

// BatchOutcome is one company's slot in a batch run. Exactly one of
// Result and Error is set.
type BatchOutcome struct {
	CompanyID string  `json:"company_id"`
	Result    *Result `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// BatchResult summarizes a catalog-wide evaluation run. Outcomes keep the
// catalog order regardless of completion order.
type BatchResult struct {
	RunID     string         `json:"run_id"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Outcomes  []BatchOutcome `json:"outcomes"`
	Duration  time.Duration  `json:"duration"`
}

// EvaluateAll evaluates every company in the catalog with bounded
// concurrency under a fresh run id. One company's failure marks its
// outcome and moves on; only context cancellation aborts the run. The
// partial result is returned alongside the cancellation error.
func (s *Service) EvaluateAll(ctx context.Context, opts Options) (*BatchResult, error) {
	return s.EvaluateBatch(ctx, uuid.New().String(), opts)
}

// EvaluateBatch is EvaluateAll under a caller-supplied run id, so
// background launchers can hand the id out before the run completes.
func (s *Service) EvaluateBatch(ctx context.Context, runID string, opts Options) (*BatchResult, error) {
	start := time.Now()

	catalog, err := s.companies.All()
	if err != nil {
		return nil, err
	}

	total := len(catalog)

	s.events.Emit("pipeline", &events.BatchStartedData{RunID: runID, Companies: total})
	s.log.Info().Str("run_id", runID).Int("companies", total).Msg("Batch evaluation started")

	outcomes := make([]BatchOutcome, total)

	var mu sync.Mutex
	done, failed := 0, 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i, company := range catalog {
		i, company := i, company
		g.Go(func() error {
			// EvaluateCompany only consults the context during model
			// training, so check before starting the company at all.
			var res *Result
			runErr := gctx.Err()
			if runErr == nil {
				res, runErr = s.EvaluateCompany(gctx, company.ID, opts)
			}

			outcome := BatchOutcome{CompanyID: company.ID}
			if runErr != nil {
				outcome.Error = runErr.Error()
			} else {
				outcome.Result = res
			}
			outcomes[i] = outcome

			mu.Lock()
			done++
			if runErr != nil {
				failed++
			}
			doneNow, failedNow := done, failed
			progress := doneNow%s.cfg.ProgressEvery == 0 || doneNow == total
			mu.Unlock()

			if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
				s.events.EmitError("pipeline", runErr, map[string]interface{}{
					"company_id": company.ID,
					"run_id":     runID,
				})
			}
			if progress {
				s.events.Emit("pipeline", &events.BatchProgressData{
					RunID:  runID,
					Done:   doneNow,
					Total:  total,
					Failed: failedNow,
				})
			}

			return gctx.Err()
		})
	}

	waitErr := g.Wait()

	result := &BatchResult{
		RunID:     runID,
		Total:     total,
		Succeeded: total - failed,
		Failed:    failed,
		Outcomes:  outcomes,
		Duration:  time.Since(start),
	}

	s.events.Emit("pipeline", &events.BatchCompletedData{
		RunID:     runID,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Duration:  result.Duration.Seconds(),
	})

	// Benchmarks follow from whatever evaluations now exist; a refresh
	// failure degrades comparisons but not the batch itself.
	if waitErr == nil && total > 0 {
		if _, err := s.RefreshBenchmarks(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to refresh industry benchmarks")
		}
	}

	s.log.Info().
		Str("run_id", runID).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("elapsed", result.Duration).
		Msg("Batch evaluation completed")

	return result, waitErr
}
