package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpipe/ragpipe/internal/config"
)

func newTestClient(t *testing.T, stream bool, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&config.CompletionConfig{
		Host:   srv.URL,
		Model:  "qwen2.5-coder:3b",
		Stream: stream,
	})
	require.NoError(t, err)
	return client, srv
}

func TestCompleteNonStreaming(t *testing.T) {
	client, _ := newTestClient(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5-coder:3b", req.Model)
		assert.Equal(t, "say hi", req.Prompt)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.1, req.Options.Temperature, 1e-9)
		assert.Equal(t, 500, req.Options.NumPredict)

		json.NewEncoder(w).Encode(map[string]any{"response": "hi there", "done": true})
	})

	got, err := client.Complete(context.Background(), "say hi", Options{Temperature: 0.1, MaxTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)
}

func TestCompleteStreaming(t *testing.T) {
	client, _ := newTestClient(t, true, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Write([]byte(`{"response": "Hello", "done": false}` + "\n"))
		w.Write([]byte("\n")) // blank keepalive line
		w.Write([]byte(`{"response": ", world", "done": false}` + "\n"))
		w.Write([]byte(`{"response": "!", "done": true}` + "\n"))
		w.Write([]byte(`{"response": "ignored after done", "done": false}` + "\n"))
	})

	got, err := client.Complete(context.Background(), "greet", Options{Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", got)
}

func TestCompleteStatusError(t *testing.T) {
	client, _ := newTestClient(t, false, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Complete(context.Background(), "p", Options{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestCompleteTransportError(t *testing.T) {
	client, srv := newTestClient(t, false, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.Complete(context.Background(), "p", Options{})
	var transport *TransportError
	assert.ErrorAs(t, err, &transport)
}

func TestCompleteInvalidStreamChunk(t *testing.T) {
	client, _ := newTestClient(t, true, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json\n"))
	})

	_, err := client.Complete(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream chunk")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(&config.CompletionConfig{Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(&config.CompletionConfig{Host: "http://localhost:11434"})
	assert.Error(t, err)
}
