// Package embedding provides clients for external embedding services.
package embedding

import (
	"context"
	"fmt"

	"github.com/ragpipe/ragpipe/internal/config"
)

// Client is the interface for embedding API clients
type Client interface {
	// Embed returns a fixed-length vector for text. Failures are typed:
	// *TransportError, *StatusError or *MalformedResponseError.
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// New creates an embedding client for the configured provider
func New(cfg *config.EmbeddingConfig) (Client, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaClient(cfg)
	case "openai":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// TransportError reports a network-level failure reaching the service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("embedding transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-success HTTP status from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding API returned status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError reports a success response whose payload does
// not carry the expected vector.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed embedding response: %s", e.Reason)
}
