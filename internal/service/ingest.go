package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/imaging"
)

// Ingest decodes and crops an uploaded frame, stores both images under a
// fresh session id and returns the references a query submits with. The
// payloads expire after the configured TTL whether or not a run claims them.
func (s *Service) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	frame, err := imaging.DecodeBase64(req.FullFrameB64)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable frame: %v", ErrInvalidRequest, err)
	}
	snippet, err := imaging.Crop(frame, req.BBox, req.ViewportW, req.ViewportH)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	fullData, err := imaging.EncodeJPEG(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	snippetData, err := imaging.EncodeJPEG(snippet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snippet: %w", err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()[:8]
	}
	fullRef := sessionID + "_full"
	snippetRef := sessionID + "_snippet"

	if err := s.blobs.Set(ctx, fullRef, fullData, s.cfg.BlobTTL); err != nil {
		return nil, fmt.Errorf("failed to store frame: %w", err)
	}
	if err := s.blobs.Set(ctx, snippetRef, snippetData, s.cfg.BlobTTL); err != nil {
		return nil, fmt.Errorf("failed to store snippet: %w", err)
	}

	s.logger.Info("frame ingested",
		"session_id", sessionID,
		"full_bytes", len(fullData), "snippet_bytes", len(snippetData))

	return &domain.IngestResponse{
		SessionID:    sessionID,
		FullFrameRef: fullRef,
		SnippetRef:   snippetRef,
		ExpiresInSec: int(s.cfg.BlobTTL.Seconds()),
	}, nil
}
