// Package api provides HTTP handlers for the query engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/framelens/orchestrator/internal/config"
	"github.com/framelens/orchestrator/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	svc    *service.Service
	config *config.Config
	logger *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, config *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:    svc,
		config: config,
		logger: logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/frames", h.IngestFrame)

	e.POST("/v1/queries/stream", h.SubmitQueryStream)
	e.POST("/v1/queries", h.SubmitQuery)

	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.GET("/v1/runs/:run_id/stream", h.StreamRun)
	e.GET("/v1/runs/:run_id/ws", h.StreamRunWS)
	e.POST("/v1/runs/:run_id/cancel", h.CancelRun)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}
