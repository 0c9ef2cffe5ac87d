package pipeline

import (
	"context"

	"github.com/framelens/orchestrator/internal/adapter/transcript"
	"github.com/framelens/orchestrator/internal/domain"
)

const noRelevantTranscript = "[No relevant transcript found in temporal window]"

// TemporalContext fetches the transcript through the tiered source and
// narrows it to a temporal window around the capture timestamp, ordered by
// relevance to the visual label and the query.
type TemporalContext struct {
	Transcripts   transcript.Source
	WindowSeconds float64
}

var _ Stage = (*TemporalContext)(nil)

func (s *TemporalContext) ID() domain.StageID {
	return domain.StageTemporalContext
}

func (s *TemporalContext) Invoke(ctx context.Context, rc *domain.RunContext, st domain.AgentState) (domain.StateUpdate, error) {
	if !st.HasTranscript {
		return domain.StateUpdate{}, Skip("no transcript available")
	}

	segments, err := s.Transcripts.Query(ctx, rc.VideoID)
	if err != nil {
		return domain.StateUpdate{}, Failure(domain.FailureCollaboratorUnavailable, err)
	}

	window := transcript.TemporalWindow(segments, rc.Timestamp, s.WindowSeconds)
	text := transcript.RankByRelevance(window, st.VisualLabel, rc.Query)
	if text == "" {
		text = noRelevantTranscript
	}

	return domain.StateUpdate{TranscriptContext: &text}, nil
}
