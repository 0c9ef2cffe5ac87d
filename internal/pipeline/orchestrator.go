package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/framelens/orchestrator/internal/config"
	"github.com/framelens/orchestrator/internal/domain"
)

// EventSink receives progress events and answers liveness checks for the
// caller's transport. Sequence numbers are assigned by the sink.
type EventSink interface {
	Publish(event domain.ProgressEvent) error
	Connected() bool
}

// RunRecorder persists run state transitions. It may be nil in tests.
type RunRecorder interface {
	UpdateRunState(ctx context.Context, runID string, state domain.RunState) error
	UpdateRunCompleted(ctx context.Context, runID string, state domain.RunState, errData []byte) error
}

// Result is the single terminal outcome of a run.
type Result struct {
	State      domain.RunState
	Answer     string
	Confidence float64
	FailReason domain.FailReason
	Err        error
}

// Orchestrator drives one run through the five-stage sequence. One
// orchestrator instance serves exactly one run; stages execute strictly
// sequentially and the orchestrator is the only writer of AgentState.
type Orchestrator struct {
	Executor  *Executor
	Visual    Stage
	Temporal  Stage
	Routing   Stage
	Synthesis Stage
	Corrector *Corrector

	Budgets  config.StageBudgets
	Sink     EventSink
	Recorder RunRecorder
	Logger   *slog.Logger
}

type plannedStage struct {
	stage   Stage
	state   domain.RunState
	budget  time.Duration
	thought string
}

// Run executes the pipeline for rc and returns exactly one terminal result.
func (o *Orchestrator) Run(ctx context.Context, rc *domain.RunContext) Result {
	logger := o.logger().With("run_id", rc.RunID)

	if err := o.checkWiring(); err != nil {
		logger.Error("fatal configuration", "error", err)
		o.emitError(rc, fmt.Sprintf("configuration error: %v", err))
		return o.terminate(rc, Result{State: domain.RunStateFailed, FailReason: domain.FailReasonConfiguration, Err: err})
	}

	var st domain.AgentState

	contextStages := []plannedStage{
		{o.Visual, domain.RunStateLabeling, o.Budgets.VisualLabeling, "Categorizing visual context..."},
		{o.Temporal, domain.RunStateTemporalSearch, o.Budgets.TemporalContext, "Syncing transcript timelines..."},
		{o.Routing, domain.RunStateToolRouting, o.Budgets.ToolRouting, "Evaluating external knowledge sources..."},
	}

	for _, planned := range contextStages {
		if !o.Sink.Connected() {
			logger.Info("caller gone, abandoning run", "before", planned.state)
			return o.terminate(rc, Result{State: domain.RunStateFailed, FailReason: domain.FailReasonCallerGone})
		}
		o.transition(ctx, rc, planned.state)
		o.emitProcessing(rc, planned.stage.ID(), planned.thought)

		outcome, err := o.Executor.Execute(ctx, planned.stage, rc, st, planned.budget)
		if err != nil {
			return o.cancelled(rc, err)
		}
		st.CurrentStage = planned.stage.ID()

		switch outcome.Kind {
		case domain.OutcomeSuccess:
			st = outcome.Update.Apply(st)
		case domain.OutcomeSkipped:
			logger.Info("stage skipped", "stage", planned.stage.ID(), "reason", outcome.Reason)
		default:
			// Context stages degrade gracefully: warn the caller and move
			// on with reduced context.
			logger.Warn("stage degraded", "stage", planned.stage.ID(), "outcome", outcome.Kind, "error", outcome.Err)
			o.emitProcessing(rc, planned.stage.ID(), degradeThought(planned.stage.ID(), outcome))
		}
	}

	for {
		if !o.Sink.Connected() {
			logger.Info("caller gone, abandoning run", "before", domain.RunStateSynthesizing)
			return o.terminate(rc, Result{State: domain.RunStateFailed, FailReason: domain.FailReasonCallerGone})
		}
		o.transition(ctx, rc, domain.RunStateSynthesizing)
		o.emitProcessing(rc, domain.StageSynthesis, "Synthesizing answer from all context...")

		outcome, err := o.Executor.Execute(ctx, o.Synthesis, rc, st, o.Budgets.Synthesis)
		if err != nil {
			return o.cancelled(rc, err)
		}
		st.CurrentStage = domain.StageSynthesis

		switch outcome.Kind {
		case domain.OutcomeSuccess:
			st = outcome.Update.Apply(st)
		case domain.OutcomeTimedOut:
			o.emitError(rc, "answer synthesis timed out")
			return o.terminate(rc, Result{State: domain.RunStateFailed, FailReason: domain.FailReasonSynthesis})
		default:
			o.emitError(rc, fmt.Sprintf("answer synthesis failed: %v", outcome.Err))
			return o.terminate(rc, Result{State: domain.RunStateFailed, FailReason: domain.FailReasonSynthesis, Err: outcome.Err})
		}

		if !o.Sink.Connected() {
			logger.Info("caller gone, abandoning run", "before", domain.RunStateValidating)
			return o.terminate(rc, Result{State: domain.RunStateFailed, FailReason: domain.FailReasonCallerGone})
		}
		o.transition(ctx, rc, domain.RunStateValidating)
		o.emitProcessing(rc, domain.StageGuardrail, "Running hallucination guardrail...")
		st.CurrentStage = domain.StageGuardrail

		if err := ctx.Err(); err != nil {
			return o.cancelled(rc, err)
		}
		directive, verdict := o.Corrector.Decide(ctx, rc, &st)

		switch directive {
		case DirectiveRetry:
			logger.Info("guardrail rejected draft, retrying synthesis",
				"attempt", st.CorrectionAttempts, "confidence", verdict.Confidence, "reason", verdict.Reason)
			o.emitProcessing(rc, domain.StageGuardrail,
				fmt.Sprintf("Validation rejected the draft (attempt %d), re-synthesizing...", st.CorrectionAttempts))

		case DirectiveBestGuess:
			logger.Info("correction ceiling reached, releasing best guess", "attempts", st.CorrectionAttempts)
			answer := BestGuessDisclaimer + st.DraftAnswer
			o.emitComplete(rc, answer, st.Confidence)
			return o.terminate(rc, Result{State: domain.RunStateBestGuess, Answer: answer, Confidence: st.Confidence})

		default:
			o.emitComplete(rc, st.DraftAnswer, st.Confidence)
			return o.terminate(rc, Result{State: domain.RunStateComplete, Answer: st.DraftAnswer, Confidence: st.Confidence})
		}
	}
}

func (o *Orchestrator) checkWiring() error {
	switch {
	case o.Visual == nil, o.Temporal == nil, o.Routing == nil, o.Synthesis == nil:
		return fmt.Errorf("%w: missing pipeline stage", ErrFatalConfig)
	case o.Corrector == nil || o.Corrector.Guardrail == nil:
		return fmt.Errorf("%w: missing guardrail", ErrFatalConfig)
	case o.Executor == nil:
		return fmt.Errorf("%w: missing executor", ErrFatalConfig)
	case o.Sink == nil:
		return fmt.Errorf("%w: missing event sink", ErrFatalConfig)
	}
	return nil
}

// cancelled ends the run after upstream cancellation. An error event is
// still attempted: cancellation may come from the cancel endpoint while the
// stream is attached.
func (o *Orchestrator) cancelled(rc *domain.RunContext, err error) Result {
	if o.Sink.Connected() {
		o.emitError(rc, "run cancelled")
	}
	return o.terminate(rc, Result{State: domain.RunStateFailed, FailReason: domain.FailReasonCancelled, Err: err})
}

func (o *Orchestrator) transition(ctx context.Context, rc *domain.RunContext, state domain.RunState) {
	if o.Recorder == nil {
		return
	}
	if err := o.Recorder.UpdateRunState(ctx, rc.RunID, state); err != nil {
		o.logger().Warn("failed to persist run state", "run_id", rc.RunID, "state", state, "error", err)
	}
}

func (o *Orchestrator) terminate(rc *domain.RunContext, result Result) Result {
	if o.Recorder != nil {
		var errData []byte
		if result.FailReason != "" {
			payload := map[string]string{"reason": string(result.FailReason)}
			if result.Err != nil {
				payload["message"] = result.Err.Error()
			}
			errData, _ = json.Marshal(payload)
		}
		// Background context: the run context may already be cancelled and
		// the terminal state must still be recorded.
		persistCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := o.Recorder.UpdateRunCompleted(persistCtx, rc.RunID, result.State, errData); err != nil {
			o.logger().Warn("failed to persist terminal state", "run_id", rc.RunID, "error", err)
		}
	}
	return result
}

func (o *Orchestrator) emitProcessing(rc *domain.RunContext, stage domain.StageID, thought string) {
	o.publish(domain.ProgressEvent{
		RunID:   rc.RunID,
		Status:  domain.EventStatusProcessing,
		Stage:   stage,
		Thought: thought,
	})
}

func (o *Orchestrator) emitComplete(rc *domain.RunContext, answer string, confidence float64) {
	o.publish(domain.ProgressEvent{
		RunID:      rc.RunID,
		Status:     domain.EventStatusComplete,
		Answer:     answer,
		Confidence: confidence,
	})
}

func (o *Orchestrator) emitError(rc *domain.RunContext, message string) {
	o.publish(domain.ProgressEvent{
		RunID:   rc.RunID,
		Status:  domain.EventStatusError,
		Message: message,
	})
}

func (o *Orchestrator) publish(event domain.ProgressEvent) {
	if o.Sink == nil {
		return
	}
	if err := o.Sink.Publish(event); err != nil {
		o.logger().Warn("failed to publish event", "run_id", event.RunID, "error", err)
	}
}

func degradeThought(stage domain.StageID, outcome domain.StageOutcome) string {
	what := "failed"
	if outcome.Kind == domain.OutcomeTimedOut {
		what = "timed out"
	}
	switch stage {
	case domain.StageVisualLabeling:
		return "Visual labeling " + what + ", continuing without a classification..."
	case domain.StageTemporalContext:
		return "Transcript lookup " + what + ", continuing without transcript context..."
	case domain.StageToolRouting:
		return "External knowledge lookup " + what + ", continuing with available context..."
	}
	return "Stage " + what + ", continuing..."
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
