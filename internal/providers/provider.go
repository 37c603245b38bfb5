package providers

import (
	"context"
	"errors"
	"fmt"

	"provider_gateway/internal/models"
)

// ChatMessage is one turn of a conversation in the normalized wire shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var (
	// ErrUnsupportedProvider is returned when a provider identifier matches
	// no registered adapter.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrUpstreamTimeout is returned when a synchronous completion exceeds
	// the configured upstream timeout.
	ErrUpstreamTimeout = errors.New("upstream request timed out")
)

// UpstreamError is a failure reported by the provider itself, after the
// request reached it.
type UpstreamError struct {
	Provider   models.ProviderID
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream returned status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Provider is implemented by each concrete adapter. Adapters are stateless
// with respect to credentials: the caller's decrypted key is passed per call
// and never retained.
type Provider interface {
	// ID returns the provider identifier this adapter serves.
	ID() models.ProviderID

	// Complete performs a blocking completion and returns the full provider
	// payload. Bounded by the adapter's upstream timeout.
	Complete(ctx context.Context, apiKey, model string, messages []ChatMessage) (map[string]any, error)

	// StreamComplete opens an incremental completion. The returned stream
	// yields content chunks in upstream order until io.EOF.
	StreamComplete(ctx context.Context, apiKey, model string, messages []ChatMessage) (*Stream, error)
}
