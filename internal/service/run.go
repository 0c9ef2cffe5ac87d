package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/pipeline"
	"github.com/framelens/orchestrator/internal/publisher"
)

// SubmitQuery validates the request, persists the run and starts the
// pipeline in the background. The returned publisher already carries every
// event; the transport subscribes to it with replay from seq 0.
func (s *Service) SubmitQuery(ctx context.Context, req domain.QueryRequest) (*domain.RunContext, *publisher.Publisher, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()[:8]
	}

	rc := &domain.RunContext{
		RunID:        "run_" + uuid.New().String()[:8],
		SessionID:    sessionID,
		VideoID:      req.VideoID,
		Timestamp:    req.Timestamp,
		BBox:         req.BBox,
		ViewportW:    req.ViewportW,
		ViewportH:    req.ViewportH,
		Query:        req.Query,
		FullFrameRef: req.FullFrameRef,
		SnippetRef:   req.SnippetRef,
	}

	if err := s.store.CreateRun(ctx, &domain.Run{
		RunID:     rc.RunID,
		SessionID: rc.SessionID,
		VideoID:   rc.VideoID,
		State:     domain.RunStateInit,
		StartedAt: time.Now(),
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to create run: %w", err)
	}

	pub := publisher.New(rc.RunID, s.cfg.EventBufferSize)

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.runs[rc.RunID] = &runHandle{pub: pub, cancel: cancel}
	s.mu.Unlock()

	orch := s.newOrchestrator(pub)
	go func() {
		defer cancel()
		result := orch.Run(runCtx, rc)
		s.logger.Info("run terminated",
			"run_id", rc.RunID, "state", result.State, "reason", result.FailReason)
		s.finishRun(rc)
		pub.Close()
	}()

	return rc, pub, nil
}

// newOrchestrator assembles a per-run orchestrator over the shared
// collaborators. Runs share no mutable state with each other.
func (s *Service) newOrchestrator(pub *publisher.Publisher) *pipeline.Orchestrator {
	return &pipeline.Orchestrator{
		Executor: pipeline.NewExecutor(s.logger),
		Visual: &pipeline.VisualLabeling{
			Blobs:       s.blobs,
			Labeler:     s.collabs.Labeler,
			Transcripts: s.collabs.Transcripts,
		},
		Temporal: &pipeline.TemporalContext{
			Transcripts:   s.collabs.Transcripts,
			WindowSeconds: s.cfg.TranscriptWindow.Seconds(),
		},
		Routing: &pipeline.ToolRouting{
			Routing:   s.collabs.Routing,
			Checker:   s.collabs.Labeler,
			Knowledge: s.collabs.Knowledge,
		},
		Synthesis: &pipeline.Synthesis{
			Blobs:       s.blobs,
			Synthesizer: s.collabs.Synthesizer,
		},
		Corrector: &pipeline.Corrector{
			Guardrail: &pipeline.Guardrail{
				Blobs:      s.blobs,
				Similarity: s.collabs.Similarity,
				Judge:      s.collabs.Judge,
				Thresholds: s.thresholds,
				Logger:     s.logger,
			},
			MaxAttempts: s.cfg.MaxCorrectionAttempts,
			Budget:      s.cfg.Budgets.Guardrail,
		},
		Budgets:  s.cfg.Budgets,
		Sink:     &recordingSink{pub: pub, store: s.store, logger: s.logger},
		Recorder: s.store,
		Logger:   s.logger,
	}
}

// finishRun releases per-run resources. The image payloads are deleted
// eagerly; their TTL is only a backstop. The publisher stays registered for
// the reconnect grace window and is dropped by the sweeper.
func (s *Service) finishRun(rc *domain.RunContext) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, ref := range []string{rc.FullFrameRef, rc.SnippetRef} {
		if err := s.blobs.Delete(cleanupCtx, ref); err != nil {
			s.logger.Warn("failed to delete blob", "run_id", rc.RunID, "ref", ref, "error", err)
		}
	}
}

// CancelRun aborts a running pipeline. Terminal runs cancel idempotently.
func (s *Service) CancelRun(ctx context.Context, runID string) error {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return ErrRunNotFound
	}
	if run.State.IsTerminal() {
		return nil
	}

	s.mu.Lock()
	h, ok := s.runs[runID]
	s.mu.Unlock()
	if ok {
		h.cancel()
	}
	return nil
}

// GetRun returns the persisted run row, or nil when unknown.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRunEvents returns persisted progress events after a sequence number.
func (s *Service) GetRunEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.ProgressEvent, error) {
	events, err := s.store.GetEvents(ctx, runID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}
