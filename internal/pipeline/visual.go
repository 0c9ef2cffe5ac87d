package pipeline

import (
	"context"
	"errors"

	"github.com/framelens/orchestrator/internal/adapter/genai"
	"github.com/framelens/orchestrator/internal/adapter/transcript"
	"github.com/framelens/orchestrator/internal/blobstore"
	"github.com/framelens/orchestrator/internal/domain"
)

const unknownLabel = "unknown visual content"

// VisualLabeling asks the fast model for a structural label of the snippet
// and probes transcript availability so later stages can fast-fail.
type VisualLabeling struct {
	Blobs       blobstore.Store
	Labeler     genai.ModelClient
	Transcripts transcript.Source
}

var _ Stage = (*VisualLabeling)(nil)

func (s *VisualLabeling) ID() domain.StageID {
	return domain.StageVisualLabeling
}

func (s *VisualLabeling) Invoke(ctx context.Context, rc *domain.RunContext, st domain.AgentState) (domain.StateUpdate, error) {
	snippet, err := s.Blobs.Get(ctx, rc.SnippetRef)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// Nothing to look at; carry a neutral label and let the
			// pipeline degrade instead of failing the run here.
			label := unknownLabel
			hasTranscript := false
			return domain.StateUpdate{VisualLabel: &label, HasTranscript: &hasTranscript}, nil
		}
		return domain.StateUpdate{}, Failure(domain.FailureCollaboratorUnavailable, err)
	}

	label, err := s.Labeler.Infer(ctx, genai.InferRequest{
		Images: [][]byte{snippet},
		Text:   labelInstructions,
	})
	if err != nil {
		return domain.StateUpdate{}, Failure(Classify(err), err)
	}
	if label == "" {
		return domain.StateUpdate{}, Failf(domain.FailureInvalidResponse, "labeler returned empty label")
	}

	// Availability probe only; the temporal stage fetches the transcript it
	// actually uses.
	hasTranscript := true
	if _, err := s.Transcripts.Query(ctx, rc.VideoID); err != nil {
		hasTranscript = false
	}

	return domain.StateUpdate{VisualLabel: &label, HasTranscript: &hasTranscript}, nil
}
