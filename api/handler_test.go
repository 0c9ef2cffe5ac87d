package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framelens/orchestrator/api"
	"github.com/framelens/orchestrator/internal/adapter/embed"
	"github.com/framelens/orchestrator/internal/adapter/genai"
	"github.com/framelens/orchestrator/internal/adapter/search"
	"github.com/framelens/orchestrator/internal/adapter/transcript"
	"github.com/framelens/orchestrator/internal/config"
	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/service"
	"github.com/framelens/orchestrator/policy"
	"github.com/framelens/orchestrator/tests/helpers"
)

func newTestHandler(t *testing.T) (*api.Handler, *service.Service) {
	t.Helper()
	routing, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	store := helpers.NewTestSQLiteStore(t)
	cfg := config.Load()
	svc := service.New(store, store, service.Collaborators{
		Labeler:     genai.NewMockClient("a suspension bridge at sunset"),
		Synthesizer: genai.NewMockClient("It is the Golden Gate Bridge."),
		Judge:       genai.NewMockClient("AGREE"),
		Similarity:  &embed.Mock{Score: 0.9},
		Transcripts: &transcript.Mock{Segments: []transcript.Segment{
			{Text: "here we cross the famous bridge over the golden gate strait", Start: 30, Duration: 5},
		}},
		Knowledge: &search.Mock{Text: "Opened in 1937."},
		Routing:   routing,
	}, cfg, nil)

	return api.NewHandler(svc, cfg, nil), svc
}

func pngFrameB64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 128, 72))
	for y := 0; y < 72; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func ingestFrame(t *testing.T, h *api.Handler, e *echo.Echo) domain.IngestResponse {
	t.Helper()
	body, _ := json.Marshal(domain.IngestRequest{
		FullFrameB64: pngFrameB64(t),
		BBox:         [4]float64{10, 10, 50, 30},
		ViewportW:    128,
		ViewportH:    72,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/frames", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.IngestFrame(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp domain.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestIngestFrame(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	resp := ingestFrame(t, h, e)
	assert.NotEmpty(t, resp.SessionID)
	assert.True(t, strings.HasSuffix(resp.FullFrameRef, "_full"))
	assert.True(t, strings.HasSuffix(resp.SnippetRef, "_snippet"))
}

func TestIngestFrameRejectsBadPayload(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	body, _ := json.Marshal(domain.IngestRequest{
		FullFrameB64: "nonsense",
		BBox:         [4]float64{0, 0, 10, 10},
		ViewportW:    100,
		ViewportH:    100,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/frames", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.IngestFrame(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitQueryStreamEndToEnd(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	ing := ingestFrame(t, h, e)

	body, _ := json.Marshal(domain.QueryRequest{
		SessionID:    ing.SessionID,
		VideoID:      "vid1",
		Timestamp:    42,
		BBox:         [4]float64{10, 10, 50, 30},
		ViewportW:    128,
		ViewportH:    72,
		Query:        "what bridge is this?",
		FullFrameRef: ing.FullFrameRef,
		SnippetRef:   ing.SnippetRef,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/queries/stream", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	// The handler streams until the run reaches a terminal event.
	require.NoError(t, h.SubmitQueryStream(c))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Run-Id"))

	stream := rec.Body.String()
	assert.Contains(t, stream, "id: 1\n")
	assert.Contains(t, stream, `"status":"processing"`)
	assert.Contains(t, stream, `"status":"complete"`)
	assert.Contains(t, stream, "Golden Gate Bridge")
}

func TestSubmitQueryStreamValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	body, _ := json.Marshal(domain.QueryRequest{VideoID: "vid1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/queries/stream", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.SubmitQueryStream(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitQueryAsync(t *testing.T) {
	h, svc := newTestHandler(t)
	e := echo.New()

	ing := ingestFrame(t, h, e)

	body, _ := json.Marshal(domain.QueryRequest{
		SessionID: ing.SessionID, VideoID: "vid1", Timestamp: 42,
		BBox: [4]float64{10, 10, 50, 30}, ViewportW: 128, ViewportH: 72,
		Query: "what is this?", FullFrameRef: ing.FullFrameRef, SnippetRef: ing.SnippetRef,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/queries", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.SubmitQuery(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp domain.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, ing.SessionID, resp.SessionID)

	require.Eventually(t, func() bool {
		run, err := svc.GetRun(context.Background(), resp.RunID)
		return err == nil && run != nil && run.State.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)
}

func TestGetRunNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/runs/:run_id")
	c.SetParamNames("run_id")
	c.SetParamValues("run_missing")

	require.NoError(t, h.GetRun(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRunNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/v1/runs/run_missing/cancel", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/runs/:run_id/cancel")
	c.SetParamNames("run_id")
	c.SetParamValues("run_missing")

	require.NoError(t, h.CancelRun(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRunEventsRejectsBadParams(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/r1/events?after_seq=banana", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/runs/:run_id/events")
	c.SetParamNames("run_id")
	c.SetParamValues("r1")

	require.NoError(t, h.GetRunEvents(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamRunResumesAfterSeq(t *testing.T) {
	h, svc := newTestHandler(t)
	e := echo.New()

	ing := ingestFrame(t, h, e)
	rc, _, err := svc.SubmitQuery(context.Background(), domain.QueryRequest{
		SessionID: ing.SessionID, VideoID: "vid1", Timestamp: 42,
		BBox: [4]float64{10, 10, 50, 30}, ViewportW: 128, ViewportH: 72,
		Query: "what is this?", FullFrameRef: ing.FullFrameRef, SnippetRef: ing.SnippetRef,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := svc.GetRun(context.Background(), rc.RunID)
		return err == nil && run != nil && run.State.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+rc.RunID+"/stream?after=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/runs/:run_id/stream")
	c.SetParamNames("run_id")
	c.SetParamValues(rc.RunID)

	require.NoError(t, h.StreamRun(c))

	stream := rec.Body.String()
	assert.NotContains(t, stream, "id: 1\n")
	assert.NotContains(t, stream, "id: 2\n")
	assert.Contains(t, stream, "id: 3\n")
	assert.Contains(t, stream, `"status":"complete"`)
}

func TestStreamRunNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_missing/stream", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/runs/:run_id/stream")
	c.SetParamNames("run_id")
	c.SetParamValues("run_missing")

	require.NoError(t, h.StreamRun(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
