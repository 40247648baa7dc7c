package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "text-embedding-3-small",
		WithRetryPolicy(RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, Multiplier: 2, Sleep: noSleep}),
	)
}

func TestClient_Embed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, "python healthcare", req.Input)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	})
	v, err := c.Embed(context.Background(), "python healthcare")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
}

func TestClient_GenerateText_options(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		if assert.NotNil(t, req.Temperature) {
			assert.Equal(t, 0.3, *req.Temperature)
		}
		assert.Equal(t, 200, req.MaxTokens)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
		}
		assert.Nil(t, req.ResponseFormat)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  We built it.  "}}]}`))
	})
	out, err := c.GenerateText(context.Background(), "sys", "user",
		WithModel("gpt-4o"), WithTemperature(0.3), WithMaxTokens(200))
	require.NoError(t, err)
	assert.Equal(t, "We built it.", out)
}

func TestClient_GenerateStructured(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.ResponseFormat) && assert.NotNil(t, req.ResponseFormat.JSONSchema) {
			assert.Equal(t, "json_schema", req.ResponseFormat.Type)
			assert.Equal(t, "intent_context", req.ResponseFormat.JSONSchema.Name)
			assert.True(t, req.ResponseFormat.JSONSchema.Strict)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"intent\":\"ambiguous\"}"}}]}`))
	})
	var out struct {
		Intent string `json:"intent"`
	}
	schema := Schema{Name: "intent_context", Definition: map[string]any{"type": "object"}}
	require.NoError(t, c.GenerateStructured(context.Background(), "sys", "What is React?", schema, &out))
	assert.Equal(t, "ambiguous", out.Intent)
}

func TestClient_GenerateStructured_invalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"not json"}}]}`))
	})
	var out map[string]any
	err := c.GenerateStructured(context.Background(), "sys", "q", Schema{Name: "x"}, &out)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	})
	v, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_RateLimitExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.GenerateText(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ServerErrorNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad schema"}}`))
	})
	_, err := c.Embed(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad schema", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
