package genai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framelens/orchestrator/internal/adapter/genai"
)

func chatReply(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestKeyPoolRotatesRoundRobin(t *testing.T) {
	pool := genai.NewKeyPool([]string{"k1", "k2", "k3"})

	got := []string{pool.Next(), pool.Next(), pool.Next(), pool.Next()}
	assert.Equal(t, []string{"k1", "k2", "k3", "k1"}, got)
}

func TestKeyPoolEmpty(t *testing.T) {
	pool := genai.NewKeyPool(nil)
	assert.Equal(t, "", pool.Next())
}

func TestInferSendsImagesAndInstructions(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(chatReply("  a bridge  ")))
	}))
	t.Cleanup(srv.Close)

	c := genai.NewClient(srv.URL, "test-model", genai.NewKeyPool([]string{"key"}), time.Second)
	out, err := c.Infer(context.Background(), genai.InferRequest{
		Images:       [][]byte{[]byte("jpeg")},
		Text:         "what is this?",
		Instructions: "be terse",
	})
	require.NoError(t, err)
	assert.Equal(t, "a bridge", out)
	assert.Equal(t, "Bearer key", gotAuth)
	assert.Equal(t, "test-model", gotBody["model"])

	messages := gotBody["messages"].([]interface{})
	require.Len(t, messages, 2)
	system := messages[0].(map[string]interface{})
	assert.Equal(t, "system", system["role"])
}

func TestInferRetriesRateLimitWithKeyRotation(t *testing.T) {
	var calls atomic.Int32
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(chatReply("ok")))
	}))
	t.Cleanup(srv.Close)

	c := genai.NewClient(srv.URL, "m", genai.NewKeyPool([]string{"k1", "k2"}), 5*time.Second)
	out, err := c.Infer(context.Background(), genai.InferRequest{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"Bearer k1", "Bearer k2"}, keys)
}

func TestInferNonRetryableStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	c := genai.NewClient(srv.URL, "m", genai.NewKeyPool(nil), time.Second)
	_, err := c.Infer(context.Background(), genai.InferRequest{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, genai.IsRateLimited(err))
}

func TestInferRateLimitExhaustionIsClassifiable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := genai.NewClient(srv.URL, "m", genai.NewKeyPool(nil), time.Second)

	// Cancel during the first backoff so the test does not sit through the
	// full retry schedule; the classification survives either way.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.Infer(ctx, genai.InferRequest{Text: "hi"})
	require.Error(t, err)
}

func TestInferEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	c := genai.NewClient(srv.URL, "m", genai.NewKeyPool(nil), time.Second)
	_, err := c.Infer(context.Background(), genai.InferRequest{Text: "hi"})
	assert.Error(t, err)
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, genai.IsRateLimited(nil))
	assert.False(t, genai.IsRateLimited(context.Canceled))
}
