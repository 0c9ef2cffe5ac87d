package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/publisher"
)

// StreamRun resumes a run's event stream over SSE. The caller names the
// last sequence number it saw via the Last-Event-ID header or ?after=; the
// stream replays everything after it with no gaps or duplicates. Runs whose
// publisher already expired are served from the durable event log.
// GET /v1/runs/:run_id/stream
func (h *Handler) StreamRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")
	afterSeq := resumePoint(c)

	run, err := h.svc.GetRun(ctx, runID)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to get run")
	}
	if run == nil {
		return errorJSON(c, http.StatusNotFound, "run not found")
	}

	if pub := h.svc.Publisher(runID); pub != nil {
		return h.streamSSE(c, pub, afterSeq)
	}

	// Publisher expired: the run is long terminal, replay from the log.
	events, err := h.svc.GetRunEvents(ctx, runID, afterSeq, 1000)
	if err != nil {
		h.logger.Error("failed to get events", "run_id", runID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to get events")
	}

	writeSSEHeaders(c)
	for _, ev := range events {
		if err := writeSSEEvent(c, ev); err != nil {
			return nil
		}
	}
	return nil
}

// streamSSE attaches to a live publisher: atomic replay from afterSeq, then
// the live channel until the run terminates or the caller goes away. The
// request context doubles as the liveness probe the pipeline polls.
func (h *Handler) streamSSE(c echo.Context, pub *publisher.Publisher, afterSeq int64) error {
	ctx := c.Request().Context()
	probe := func() bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	replay, ch, cancel := pub.Subscribe(afterSeq, probe)
	defer cancel()

	writeSSEHeaders(c)
	for _, ev := range replay {
		if err := writeSSEEvent(c, ev); err != nil {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeSSEEvent(c, ev); err != nil {
				return nil
			}
		}
	}
}

func writeSSEHeaders(c echo.Context) {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()
}

func writeSSEEvent(c echo.Context, ev domain.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(c.Response().Writer, "id: %d\ndata: %s\n\n", ev.Seq, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

// resumePoint reads the caller's last seen sequence number. Last-Event-ID
// wins over the query param; malformed values resume from the start.
func resumePoint(c echo.Context) int64 {
	raw := c.Request().Header.Get("Last-Event-ID")
	if raw == "" {
		raw = c.QueryParam("after")
	}
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
