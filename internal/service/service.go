// Package service wires the pipeline, storage, publisher registry and
// collaborator clients into the operations the transport exposes.
package service

import (
	"log/slog"
	"sync"

	"github.com/framelens/orchestrator/internal/adapter/embed"
	"github.com/framelens/orchestrator/internal/adapter/genai"
	"github.com/framelens/orchestrator/internal/adapter/search"
	"github.com/framelens/orchestrator/internal/adapter/transcript"
	"github.com/framelens/orchestrator/internal/blobstore"
	"github.com/framelens/orchestrator/internal/config"
	"github.com/framelens/orchestrator/internal/pipeline"
	"github.com/framelens/orchestrator/internal/publisher"
	"github.com/framelens/orchestrator/internal/repository"
	"github.com/framelens/orchestrator/policy"
)

// Collaborators bundles the external services a run consumes.
type Collaborators struct {
	Labeler     genai.ModelClient
	Synthesizer genai.ModelClient
	Judge       genai.ModelClient
	Similarity  embed.SimilarityClient
	Transcripts transcript.Source
	Knowledge   search.KnowledgeClient
	Routing     *policy.Engine
}

// Service owns run lifecycles: submission, cancellation, lookups, blob
// ingest and background expiry.
type Service struct {
	store   *repository.SQLiteStore
	blobs   blobstore.Store
	collabs Collaborators
	cfg     *config.Config
	logger  *slog.Logger

	thresholds pipeline.ThresholdTable

	mu   sync.Mutex
	runs map[string]*runHandle
}

type runHandle struct {
	pub    *publisher.Publisher
	cancel func()
}

// New creates the service.
func New(store *repository.SQLiteStore, blobs blobstore.Store, collabs Collaborators, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		blobs:      blobs,
		collabs:    collabs,
		cfg:        cfg,
		logger:     logger,
		thresholds: pipeline.DefaultThresholds(),
		runs:       make(map[string]*runHandle),
	}
}

// Publisher returns the live publisher for a run, or nil when the run is
// unknown or already expired from the registry.
func (s *Service) Publisher(runID string) *publisher.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.runs[runID]; ok {
		return h.pub
	}
	return nil
}
