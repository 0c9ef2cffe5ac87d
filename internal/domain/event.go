package domain

// ProgressEvent is one unit of caller-visible progress. Events for a run
// carry strictly increasing, gapless sequence numbers and are immutable
// once published.
type ProgressEvent struct {
	Seq        int64       `json:"seq"`
	RunID      string      `json:"run_id"`
	Ts         int64       `json:"ts"` // Unix milliseconds
	Status     EventStatus `json:"status"`
	Stage      StageID     `json:"stage,omitempty"`
	Thought    string      `json:"thought,omitempty"`    // processing only
	Answer     string      `json:"answer,omitempty"`     // complete only
	Confidence float64     `json:"confidence,omitempty"` // complete only
	Message    string      `json:"message,omitempty"`    // error only
}
