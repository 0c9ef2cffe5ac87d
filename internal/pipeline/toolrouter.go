package pipeline

import (
	"context"
	"strings"

	"github.com/framelens/orchestrator/internal/adapter/genai"
	"github.com/framelens/orchestrator/internal/adapter/search"
	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/policy"
)

// ToolRouting decides whether the accumulated transcript context suffices
// to answer the query and, when it does not, fetches supplementary
// knowledge from the external search collaborator. The routing decision
// itself is policy data, evaluated by the OPA engine.
type ToolRouting struct {
	Routing   *policy.Engine
	Checker   genai.ModelClient
	Knowledge search.KnowledgeClient
}

var _ Stage = (*ToolRouting)(nil)

func (s *ToolRouting) ID() domain.StageID {
	return domain.StageToolRouting
}

func (s *ToolRouting) Invoke(ctx context.Context, rc *domain.RunContext, st domain.AgentState) (domain.StateUpdate, error) {
	decision, err := s.Routing.Evaluate(ctx, policy.RoutingInput{
		HasTranscript: st.HasTranscript,
		TranscriptLen: len(st.TranscriptContext),
		Label:         st.VisualLabel,
	})
	if err != nil {
		return domain.StateUpdate{}, Failure(domain.FailureCollaboratorUnavailable, err)
	}

	if decision == policy.DecisionVerify {
		decision = s.verify(ctx, rc, st)
	}

	if decision != policy.DecisionSearch {
		empty := ""
		return domain.StateUpdate{ToolData: &empty}, nil
	}

	text, err := s.Knowledge.Query(ctx, search.Params{
		Query:       rc.Query,
		VisualLabel: st.VisualLabel,
	})
	if err != nil {
		return domain.StateUpdate{}, Failure(Classify(err), err)
	}
	return domain.StateUpdate{ToolData: &text}, nil
}

// verify asks the fast model whether the transcript answers the query. A
// checker failure keeps the transcript verdict rather than failing the
// stage; routing is best-effort.
func (s *ToolRouting) verify(ctx context.Context, rc *domain.RunContext, st domain.AgentState) string {
	reply, err := s.Checker.Infer(ctx, genai.InferRequest{
		Text: sufficiencyPrompt(st.VisualLabel, st.TranscriptContext, rc.Query),
	})
	if err != nil {
		return policy.DecisionSufficient
	}
	if strings.Contains(strings.ToUpper(reply), "NO") {
		return policy.DecisionSearch
	}
	return policy.DecisionSufficient
}
