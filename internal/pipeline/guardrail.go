package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/framelens/orchestrator/internal/adapter/embed"
	"github.com/framelens/orchestrator/internal/adapter/genai"
	"github.com/framelens/orchestrator/internal/blobstore"
	"github.com/framelens/orchestrator/internal/domain"
)

// Guardrail scores a draft answer against the source snippet through three
// tiers: deterministic embedding similarity, category-dependent thresholds,
// and an independent judge model for the gray zone. The judge must not
// share a provider with labeling or synthesis; that independence is
// enforced at configuration time.
type Guardrail struct {
	Blobs      blobstore.Store
	Similarity embed.SimilarityClient
	Judge      genai.ModelClient
	Thresholds ThresholdTable
	Logger     *slog.Logger
}

// Evaluate runs one tiered evaluation of the draft answer. It degrades
// toward acceptance on infrastructure trouble (missing snippet, judge
// transport failure): the guardrail exists to catch hallucinations, not to
// block answers when validation itself is unavailable.
func (g *Guardrail) Evaluate(ctx context.Context, rc *domain.RunContext, st domain.AgentState) domain.GuardrailVerdict {
	logger := g.logger().With("run_id", rc.RunID)

	snippet, err := g.Blobs.Get(ctx, rc.SnippetRef)
	if err != nil {
		logger.Warn("guardrail cannot load snippet, passing through", "error", err)
		return domain.AcceptVerdict(0.5)
	}

	cat := g.Thresholds.Resolve(st.VisualLabel)

	// Tier 1: deterministic similarity, skipped for low-fidelity content.
	sim := 0.0
	conclusive := false
	if !cat.SkipSimilarity {
		score, err := g.Similarity.Similarity(ctx, snippet, st.DraftAnswer)
		if err != nil {
			logger.Warn("similarity unavailable, deferring to judge", "error", err)
		} else {
			sim = score
			conclusive = true
		}
	}

	// Tier 2: dynamic thresholds on the similarity score.
	if conclusive {
		if sim >= cat.Bounds.Upper {
			return domain.AcceptVerdict(sim)
		}
		if sim < cat.Bounds.Lower {
			return domain.RejectVerdict(sim, fmt.Sprintf(
				"similarity %.2f below the %.2f floor for %s content", sim, cat.Bounds.Lower, cat.Name))
		}
	}

	// Tier 3: independent judge on the gray zone (or when tier 1 was
	// skipped or unavailable). Its verdict is final for this attempt.
	return g.judge(ctx, logger, snippet, st, cat, sim)
}

func (g *Guardrail) judge(ctx context.Context, logger *slog.Logger, snippet []byte, st domain.AgentState, cat CategoryPolicy, sim float64) domain.GuardrailVerdict {
	reply, err := g.Judge.Infer(ctx, genai.InferRequest{
		Images:       [][]byte{snippet},
		Text:         judgePrompt(st.DraftAnswer),
		Instructions: judgeInstructions,
	})
	if err != nil {
		logger.Warn("judge unavailable, passing cautiously", "error", err)
		if sim > 0 {
			return domain.AcceptVerdict(sim)
		}
		return domain.AcceptVerdict(0.5)
	}

	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(reply)), "AGREE") {
		conf := cat.Bounds.Upper
		if sim > conf {
			conf = sim
		}
		return domain.AcceptVerdict(conf)
	}

	reason := strings.TrimSpace(reply)
	if reason == "" {
		reason = "judge disagreed with the draft answer"
	}
	conf := cat.Bounds.Lower - 0.01
	if conf < 0 {
		conf = 0
	}
	return domain.RejectVerdict(conf, reason)
}

func (g *Guardrail) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
