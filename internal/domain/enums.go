// Package domain defines the core domain models for the orchestrator.
package domain

// RunState represents the state of a run in the pipeline state machine.
type RunState string

const (
	RunStateInit           RunState = "INIT"
	RunStateLabeling       RunState = "LABELING"
	RunStateTemporalSearch RunState = "TEMPORAL_SEARCH"
	RunStateToolRouting    RunState = "TOOL_ROUTING"
	RunStateSynthesizing   RunState = "SYNTHESIZING"
	RunStateValidating     RunState = "VALIDATING"
	RunStateComplete       RunState = "COMPLETE"
	RunStateBestGuess      RunState = "BEST_GUESS"
	RunStateFailed         RunState = "FAILED"
)

// IsTerminal reports whether the state ends a run.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateComplete, RunStateBestGuess, RunStateFailed:
		return true
	}
	return false
}

// StageID identifies one pipeline stage.
type StageID string

const (
	StageVisualLabeling  StageID = "visual_labeling"
	StageTemporalContext StageID = "temporal_context"
	StageToolRouting     StageID = "tool_routing"
	StageSynthesis       StageID = "synthesis"
	StageGuardrail       StageID = "guardrail"
)

// EventStatus is the caller-visible status tag on a progress event.
type EventStatus string

const (
	EventStatusProcessing EventStatus = "processing"
	EventStatusComplete   EventStatus = "complete"
	EventStatusError      EventStatus = "error"
)

// OutcomeKind tags a StageOutcome variant.
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeSkipped  OutcomeKind = "skipped"
	OutcomeTimedOut OutcomeKind = "timed_out"
	OutcomeFailed   OutcomeKind = "failed"
)

// FailureKind classifies a failed stage invocation.
type FailureKind string

const (
	FailureCollaboratorUnavailable FailureKind = "collaborator_unavailable"
	FailureInvalidResponse         FailureKind = "invalid_response"
	FailureRateLimited             FailureKind = "rate_limited"
)

// VerdictKind tags a GuardrailVerdict variant.
type VerdictKind string

const (
	VerdictAccept       VerdictKind = "accept"
	VerdictReject       VerdictKind = "reject"
	VerdictInconclusive VerdictKind = "inconclusive"
)

// FailReason names why a run reached FAILED.
type FailReason string

const (
	FailReasonCallerGone    FailReason = "caller_gone"
	FailReasonSynthesis     FailReason = "synthesis_failed"
	FailReasonConfiguration FailReason = "fatal_configuration"
	FailReasonCancelled     FailReason = "cancelled"
)
