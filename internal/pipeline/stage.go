// Package pipeline implements the five-stage orchestration core: stage
// execution under per-stage budgets, the tiered guardrail, the bounded
// self-correction loop and the run state machine.
package pipeline

import (
	"context"

	"github.com/framelens/orchestrator/internal/domain"
)

// Stage is one unit of the pipeline. Invoke receives an immutable snapshot
// of the working state and returns a partial update; it must never mutate
// state in place, and it must observe ctx and return promptly when the
// budget lapses or the run is cancelled.
type Stage interface {
	ID() domain.StageID
	Invoke(ctx context.Context, rc *domain.RunContext, st domain.AgentState) (domain.StateUpdate, error)
}
