package pipeline

import (
	"context"
	"errors"

	"github.com/framelens/orchestrator/internal/adapter/genai"
	"github.com/framelens/orchestrator/internal/blobstore"
	"github.com/framelens/orchestrator/internal/domain"
)

// Synthesis produces the draft answer from both images, the transcript
// context, the tool data and any corrective guidance from a rejected
// attempt. Unlike the context stages, its failure is fatal to the attempt.
type Synthesis struct {
	Blobs       blobstore.Store
	Synthesizer genai.ModelClient
}

var _ Stage = (*Synthesis)(nil)

func (s *Synthesis) ID() domain.StageID {
	return domain.StageSynthesis
}

func (s *Synthesis) Invoke(ctx context.Context, rc *domain.RunContext, st domain.AgentState) (domain.StateUpdate, error) {
	fullFrame, err := s.Blobs.Get(ctx, rc.FullFrameRef)
	if err != nil {
		return domain.StateUpdate{}, blobFailure("full frame", err)
	}
	snippet, err := s.Blobs.Get(ctx, rc.SnippetRef)
	if err != nil {
		return domain.StateUpdate{}, blobFailure("snippet", err)
	}

	draft, err := s.Synthesizer.Infer(ctx, genai.InferRequest{
		Images: [][]byte{fullFrame, snippet},
		Text:   synthesisPrompt(rc, st),
	})
	if err != nil {
		return domain.StateUpdate{}, Failure(Classify(err), err)
	}
	if draft == "" {
		return domain.StateUpdate{}, Failf(domain.FailureInvalidResponse, "synthesizer returned empty answer")
	}

	return domain.StateUpdate{DraftAnswer: &draft}, nil
}

func blobFailure(what string, err error) error {
	if errors.Is(err, blobstore.ErrNotFound) {
		return Failf(domain.FailureInvalidResponse, "%s payload expired or missing", what)
	}
	return Failure(domain.FailureCollaboratorUnavailable, err)
}
