package domain

// StageOutcome is the result of one stage invocation. It is consumed
// immediately by the orchestrator and never retained.
type StageOutcome struct {
	Kind    OutcomeKind
	Update  StateUpdate // populated on success
	Reason  string      // populated on skip
	Failure FailureKind // populated on failure
	Err     error       // populated on failure
}

func SuccessOutcome(update StateUpdate) StageOutcome {
	return StageOutcome{Kind: OutcomeSuccess, Update: update}
}

func SkippedOutcome(reason string) StageOutcome {
	return StageOutcome{Kind: OutcomeSkipped, Reason: reason}
}

func TimedOutOutcome() StageOutcome {
	return StageOutcome{Kind: OutcomeTimedOut}
}

func FailedOutcome(kind FailureKind, err error) StageOutcome {
	return StageOutcome{Kind: OutcomeFailed, Failure: kind, Err: err}
}

// GuardrailVerdict is the result of one guardrail evaluation.
type GuardrailVerdict struct {
	Kind       VerdictKind
	Confidence float64
	Reason     string // populated on reject
}

func AcceptVerdict(confidence float64) GuardrailVerdict {
	return GuardrailVerdict{Kind: VerdictAccept, Confidence: confidence}
}

func RejectVerdict(confidence float64, reason string) GuardrailVerdict {
	return GuardrailVerdict{Kind: VerdictReject, Confidence: confidence, Reason: reason}
}

func InconclusiveVerdict(confidence float64) GuardrailVerdict {
	return GuardrailVerdict{Kind: VerdictInconclusive, Confidence: confidence}
}
