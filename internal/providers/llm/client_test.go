// internal/providers/llm/client_test.go
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

	"research-workers/internal/common/logger"
	"research-workers/internal/research"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	return New(Config{
		BaseURL:      url,
		APIKey:       "sk-test",
		Model:        "test-model",
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
	}, logger.NewTestLogger(t))
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		assert.Equal(t, 100, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  pro|0.9|analysis  "}}]}`))
	}))
	defer server.Close()

	out, err := newTestClient(t, server.URL, 0).Complete(context.Background(), []research.Message{
		research.SystemMessage("sys"),
		research.UserMessage("hi"),
	}, 0.3, 100)
	require.NoError(t, err)
	assert.Equal(t, "pro|0.9|analysis", out)
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	out, err := newTestClient(t, server.URL, 2).Complete(context.Background(), nil, 0.5, 10)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, 3).Complete(context.Background(), nil, 0.5, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, research.ErrGeneration))
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_MissingContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, 0).Complete(context.Background(), nil, 0.5, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, research.ErrGeneration))
}

func TestComplete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 0)
	c.cfg.Timeout = 50 * time.Millisecond

	_, err := c.Complete(context.Background(), nil, 0.5, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, research.ErrGenerationTimeout))
}
