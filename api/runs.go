package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/service"
)

// GetRun returns the persisted record of a run.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	runID := c.Param("run_id")

	run, err := h.svc.GetRun(c.Request().Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to get run")
	}
	if run == nil {
		return errorJSON(c, http.StatusNotFound, "run not found")
	}

	return c.JSON(http.StatusOK, run)
}

// GetRunEvents returns the durable event log of a run, paged by sequence
// number.
// GET /v1/runs/:run_id/events?after_seq=N&limit=M
func (h *Handler) GetRunEvents(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	afterSeq := int64(0)
	if raw := c.QueryParam("after_seq"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return errorJSON(c, http.StatusBadRequest, "invalid after_seq")
		}
		afterSeq = n
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			return errorJSON(c, http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	run, err := h.svc.GetRun(ctx, runID)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to get run")
	}
	if run == nil {
		return errorJSON(c, http.StatusNotFound, "run not found")
	}

	events, err := h.svc.GetRunEvents(ctx, runID, afterSeq, limit)
	if err != nil {
		h.logger.Error("failed to get events", "run_id", runID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to get events")
	}
	if events == nil {
		events = []domain.ProgressEvent{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"events": events,
	})
}

// CancelRun aborts an in-flight run. Cancelling a terminal run is a no-op.
// POST /v1/runs/:run_id/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	runID := c.Param("run_id")

	if err := h.svc.CancelRun(c.Request().Context(), runID); err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return errorJSON(c, http.StatusNotFound, "run not found")
		}
		h.logger.Error("failed to cancel run", "run_id", runID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to cancel run")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"run_id": runID,
		"status": "cancelling",
	})
}
