package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/service"
)

// IngestFrame accepts a base64 frame plus a selection box, crops the
// snippet server-side and stores both images for a later query.
// POST /v1/frames
func (h *Handler) IngestFrame(c echo.Context) error {
	var req domain.IngestRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.svc.Ingest(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		h.logger.Error("frame ingest failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to ingest frame")
	}

	return c.JSON(http.StatusCreated, resp)
}
