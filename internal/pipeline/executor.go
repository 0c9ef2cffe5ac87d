package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/framelens/orchestrator/internal/domain"
)

// Executor runs one stage invocation under a hard wall-clock budget.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates a stage executor.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Execute invokes the stage against the state snapshot. The returned error
// is non-nil only when the run itself was cancelled; every stage-level
// problem is reported through the outcome. On budget expiry the executor
// stops waiting — the invocation goroutine finishes on its own and its
// result is discarded via the buffered channel.
func (e *Executor) Execute(ctx context.Context, stage Stage, rc *domain.RunContext, st domain.AgentState, budget time.Duration) (domain.StageOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.StageOutcome{}, err
	}

	stageCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type invocation struct {
		update domain.StateUpdate
		err    error
	}
	done := make(chan invocation, 1)
	go func() {
		update, err := stage.Invoke(stageCtx, rc, st)
		done <- invocation{update: update, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return domain.SuccessOutcome(res.update), nil
		}
		var skip *SkipError
		if errors.As(res.err, &skip) {
			return domain.SkippedOutcome(skip.Reason), nil
		}
		if ctx.Err() != nil {
			return domain.StageOutcome{}, ctx.Err()
		}
		if stageCtx.Err() == context.DeadlineExceeded {
			return domain.TimedOutOutcome(), nil
		}
		return domain.FailedOutcome(Classify(res.err), res.err), nil

	case <-stageCtx.Done():
		if ctx.Err() != nil {
			return domain.StageOutcome{}, ctx.Err()
		}
		e.logger.Warn("stage exceeded budget", "stage", stage.ID(), "run_id", rc.RunID, "budget", budget)
		return domain.TimedOutOutcome(), nil
	}
}
