package service

import (
	"context"
	"time"
)

// RunBlobSweeper deletes expired image payloads on an interval. Expired
// rows already read as missing; the sweep only reclaims storage.
func (s *Service) RunBlobSweeper(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.SweepExpiredBlobs(ctx)
			if err != nil {
				s.logger.Warn("blob sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("swept expired blobs", "count", n)
			}
		}
	}
}

// RunPublisherSweeper drops event publishers for terminated runs once the
// reconnect grace window has passed. Until then a disconnected caller can
// resubscribe and replay the buffered tail.
func (s *Service) RunPublisherSweeper(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepPublishers()
		}
	}
}

func (s *Service) sweepPublishers() {
	cutoff := time.Now().Add(-s.cfg.EventGrace)

	s.mu.Lock()
	defer s.mu.Unlock()
	for runID, h := range s.runs {
		if h.pub.ExpiredSince(cutoff) {
			delete(s.runs, runID)
			s.logger.Debug("expired run publisher", "run_id", runID)
		}
	}
}
