// Package completion wraps an external text-generation service.
package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragpipe/ragpipe/internal/config"
)

// Options are the sampling parameters for one completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client generates text through an Ollama-compatible generate endpoint.
// The orchestrator does not retry failed calls.
type Client struct {
	host   string
	model  string
	stream bool
	client *http.Client
}

// generateRequest is the request format for the generate API
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// generateChunk is one response unit; a non-streaming call returns
// exactly one with Done set.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// TransportError reports a network-level failure reaching the service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-success HTTP status from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion API returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a completion client from cfg
func NewClient(cfg *config.CompletionConfig) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("completion host is required")
	}

	model := cfg.Model
	if model == "" {
		return nil, fmt.Errorf("completion model is required")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  model,
		stream: cfg.Stream,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Complete sends prompt to the generate endpoint and returns the full
// generated text. When streaming is enabled the newline-delimited JSON
// fragments are accumulated until the endpoint signals completion.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: c.stream,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.host+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if !c.stream {
		var chunk generateChunk
		if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		return chunk.Response, nil
	}

	return accumulateStream(resp.Body)
}

// accumulateStream joins newline-delimited JSON fragments into one
// result, stopping at the endpoint's own completion signal.
func accumulateStream(body io.Reader) (string, error) {
	var content strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("failed to parse stream chunk: %w", err)
		}
		content.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", &TransportError{Err: err}
	}

	return content.String(), nil
}
