package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/publisher"
	"github.com/framelens/orchestrator/internal/repository"
)

// recordingSink delivers events to live subscribers and mirrors them into
// the event log so late subscribers can replay past the in-memory buffer.
// Persistence failures are logged, never surfaced to the pipeline; losing
// the durable copy must not fail the run.
type recordingSink struct {
	pub    *publisher.Publisher
	store  *repository.SQLiteStore
	logger *slog.Logger
}

func (s *recordingSink) Publish(event domain.ProgressEvent) error {
	stamped, err := s.pub.Emit(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.CreateEvent(ctx, &stamped); err != nil {
		s.logger.Warn("failed to persist event",
			"run_id", stamped.RunID, "seq", stamped.Seq, "error", err)
	}
	return nil
}

func (s *recordingSink) Connected() bool {
	return s.pub.Connected()
}
