package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamRunWS serves the same event stream as the SSE endpoint over a
// WebSocket, for callers behind proxies that buffer SSE. Resume works the
// same way via ?after=.
// GET /v1/runs/:run_id/ws
func (h *Handler) StreamRunWS(c echo.Context) error {
	runID := c.Param("run_id")
	afterSeq := resumePoint(c)

	run, err := h.svc.GetRun(c.Request().Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to get run")
	}
	if run == nil {
		return errorJSON(c, http.StatusNotFound, "run not found")
	}

	pub := h.svc.Publisher(runID)
	if pub == nil {
		return errorJSON(c, http.StatusGone, "run stream expired")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "run_id", runID, "error", err)
		return err
	}
	defer ws.Close()

	// The read pump exists only to service pongs and detect the close.
	var gone atomic.Bool
	go func() {
		ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
		ws.SetPongHandler(func(string) error {
			ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
			return nil
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				gone.Store(true)
				return
			}
		}
	}()

	replay, ch, cancel := pub.Subscribe(afterSeq, func() bool { return !gone.Load() })
	defer cancel()

	for _, ev := range replay {
		if err := writeWSEvent(ws, ev); err != nil {
			return nil
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := writeWSEvent(ws, ev); err != nil {
				return nil
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func writeWSEvent(ws *websocket.Conn, ev interface{}) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}
