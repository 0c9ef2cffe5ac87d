package domain

import (
	"encoding/json"
	"time"
)

// RunContext identifies one user request. It is created once per incoming
// request and never mutated afterwards; only blob references travel here,
// never the image bytes themselves.
type RunContext struct {
	RunID        string     `json:"run_id"`
	SessionID    string     `json:"session_id"`
	VideoID      string     `json:"video_id"`
	Timestamp    float64    `json:"timestamp"` // seconds into the video
	BBox         [4]float64 `json:"bbox"`      // [x, y, w, h] relative to the viewport
	ViewportW    float64    `json:"viewport_w"`
	ViewportH    float64    `json:"viewport_h"`
	Query        string     `json:"query"`
	FullFrameRef string     `json:"full_frame_ref"`
	SnippetRef   string     `json:"snippet_ref"`
}

// AgentState is the mutable working state threaded through the stages.
// Exactly one AgentState exists per run; only the orchestrator writes it,
// by applying StateUpdates returned from stage invocations.
type AgentState struct {
	HasTranscript      bool    `json:"has_transcript"`
	TranscriptContext  string  `json:"transcript_context"`
	VisualLabel        string  `json:"visual_classification_label"`
	ToolData           string  `json:"tool_data"`
	DraftAnswer        string  `json:"draft_answer"`
	Confidence         float64 `json:"confidence"`
	CorrectionAttempts int     `json:"correction_attempts"`
	Guidance           string  `json:"guidance"` // corrective feedback from a rejected guardrail verdict
	CurrentStage       StageID `json:"current_stage"`
}

// StateUpdate is a partial AgentState delta produced by a stage. Stages
// return updates instead of mutating state so an abandoned (timed-out)
// invocation can never corrupt the run.
type StateUpdate struct {
	HasTranscript     *bool
	TranscriptContext *string
	VisualLabel       *string
	ToolData          *string
	DraftAnswer       *string
	Guidance          *string
}

// Apply merges the update into a copy of the state and returns it.
func (u StateUpdate) Apply(st AgentState) AgentState {
	if u.HasTranscript != nil {
		st.HasTranscript = *u.HasTranscript
	}
	if u.TranscriptContext != nil {
		st.TranscriptContext = *u.TranscriptContext
	}
	if u.VisualLabel != nil {
		st.VisualLabel = *u.VisualLabel
	}
	if u.ToolData != nil {
		st.ToolData = *u.ToolData
	}
	if u.DraftAnswer != nil {
		st.DraftAnswer = *u.DraftAnswer
	}
	if u.Guidance != nil {
		st.Guidance = *u.Guidance
	}
	return st
}

// Run is the persisted record of a single pipeline execution.
type Run struct {
	RunID     string          `json:"run_id"`
	SessionID string          `json:"session_id"`
	VideoID   string          `json:"video_id"`
	State     RunState        `json:"state"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}
