package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/service"
)

// SubmitQueryStream starts a run and streams its progress events over SSE
// on the same connection. The stream carries every event from seq 1 and
// closes after the terminal event.
// POST /v1/queries/stream
func (h *Handler) SubmitQueryStream(c echo.Context) error {
	var req domain.QueryRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	rc, pub, err := h.svc.SubmitQuery(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		h.logger.Error("failed to submit query", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to submit query")
	}

	c.Response().Header().Set("X-Run-Id", rc.RunID)
	return h.streamSSE(c, pub, 0)
}

// SubmitQuery starts a run without attaching a stream and returns its id.
// The caller follows up on /v1/runs/:run_id/stream or the websocket.
// POST /v1/queries
func (h *Handler) SubmitQuery(c echo.Context) error {
	var req domain.QueryRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	rc, _, err := h.svc.SubmitQuery(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		h.logger.Error("failed to submit query", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to submit query")
	}

	return c.JSON(http.StatusAccepted, domain.SubmitResponse{
		RunID:     rc.RunID,
		SessionID: rc.SessionID,
	})
}
