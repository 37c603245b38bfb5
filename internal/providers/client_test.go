package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider_gateway/internal/models"
)

func TestProtocolClientComplete(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi"}}],"usage":{"total_tokens":3}}`))
	}))
	defer srv.Close()

	c := newProtocolClient(models.ProviderGroq, srv.URL, time.Second, map[string]any{"temperature": 0})

	payload, err := c.complete(context.Background(), "gsk_test", "gemma-7b-it", []ChatMessage{
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer gsk_test", gotAuth)
	assert.Equal(t, "gemma-7b-it", gotPayload["model"])
	assert.Equal(t, float64(0), gotPayload["temperature"])
	assert.Equal(t, false, gotPayload["stream"])

	choices, ok := payload["choices"].([]any)
	require.True(t, ok)
	assert.Len(t, choices, 1)
}

func TestProtocolClientCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key"}}`))
	}))
	defer srv.Close()

	c := newProtocolClient(models.ProviderOpenAI, srv.URL, time.Second, nil)

	_, err := c.complete(context.Background(), "bad-key", "gpt-4o", nil)
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
	assert.Equal(t, "Invalid API Key", upstreamErr.Message)
}

func TestProtocolClientCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newProtocolClient(models.ProviderGroq, srv.URL, 20*time.Millisecond, nil)

	_, err := c.complete(context.Background(), "k", "m", nil)
	assert.True(t, errors.Is(err, ErrUpstreamTimeout), "got %v", err)
}

func TestProtocolClientStreamComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, true, payload["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"one", "two"} {
			_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"` + chunk + `"}}]}` + "\n\n"))
			flusher.Flush()
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := newProtocolClient(models.ProviderGroq, srv.URL, time.Second, nil)

	stream, err := c.streamComplete(context.Background(), "k", "m", []ChatMessage{{Role: "user", Content: "go"}})
	require.NoError(t, err)
	defer stream.Close()

	var chunks []string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"one", "two"}, chunks)
}

func TestProtocolClientStreamCompleteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c := newProtocolClient(models.ProviderGroq, srv.URL, time.Second, nil)

	_, err := c.streamComplete(context.Background(), "k", "m", nil)
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.StatusCode)
}
