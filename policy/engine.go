// Package policy provides the OPA engine that decides whether the
// tool-routing stage consults the external knowledge source.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Routing decisions.
const (
	DecisionSearch     = "search"     // transcript insufficient, fetch external knowledge
	DecisionVerify     = "verify"     // transcript present, ask the fast model whether it answers the query
	DecisionSufficient = "sufficient" // transcript alone is enough
)

// Engine is the OPA routing-policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.route_policy.decision"),
		rego.Module("route_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// RoutingInput is the evaluation input for the routing policy.
type RoutingInput struct {
	HasTranscript bool   `json:"has_transcript"`
	TranscriptLen int    `json:"transcript_len"`
	Label         string `json:"label"`
}

// Evaluate returns one of the Decision* constants for the given input.
func (e *Engine) Evaluate(ctx context.Context, input RoutingInput) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"has_transcript": input.HasTranscript,
		"transcript_len": input.TranscriptLen,
		"label":          input.Label,
	}))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionSearch, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionSearch, nil
}

// DefaultPolicy mirrors the router heuristics: search when the transcript is
// missing or too short to carry meaning, otherwise let the fast model verify
// sufficiency.
const DefaultPolicy = `
package route_policy

default decision = "verify"

decision = "search" {
	not input.has_transcript
}

decision = "search" {
	input.transcript_len < 50
}
`
