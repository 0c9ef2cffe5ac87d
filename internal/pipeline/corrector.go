package pipeline

import (
	"context"
	"time"

	"github.com/framelens/orchestrator/internal/domain"
)

// Directive is the corrector's instruction to the state machine after one
// guardrail evaluation.
type Directive int

const (
	DirectiveComplete Directive = iota
	DirectiveRetry
	DirectiveBestGuess
)

// BestGuessDisclaimer prefixes answers released after the correction
// ceiling was reached.
const BestGuessDisclaimer = "Note: this answer did not pass visual validation and may be inaccurate.\n\n"

// Corrector owns the retry loop between synthesis and the guardrail,
// bounded by MaxAttempts. The bound is an explicit counter on AgentState,
// not recursion, so termination is a first-class invariant.
type Corrector struct {
	Guardrail   *Guardrail
	MaxAttempts int
	Budget      time.Duration
}

// Decide evaluates the draft answer and updates the state the orchestrator
// owns: confidence always, attempt counter and guidance on rejection. The
// guardrail call runs under its own budget; if that budget lapses the
// attempt passes cautiously rather than blocking the run.
func (c *Corrector) Decide(ctx context.Context, rc *domain.RunContext, st *domain.AgentState) (Directive, domain.GuardrailVerdict) {
	evalCtx, cancel := context.WithTimeout(ctx, c.Budget)
	defer cancel()

	verdict := c.Guardrail.Evaluate(evalCtx, rc, *st)
	st.Confidence = verdict.Confidence

	if verdict.Kind != domain.VerdictReject {
		return DirectiveComplete, verdict
	}

	st.CorrectionAttempts++
	if st.CorrectionAttempts >= c.MaxAttempts {
		return DirectiveBestGuess, verdict
	}
	st.Guidance = verdict.Reason
	return DirectiveRetry, verdict
}
