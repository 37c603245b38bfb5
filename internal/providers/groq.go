package providers

import (
	"context"
	"time"

	"provider_gateway/internal/models"
)

const groqDefaultBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider is the bespoke adapter for Groq. It rides the shared
// OpenAI-compatible protocol but pins deterministic sampling, matching the
// temperature-0 default Groq deployments are tuned for here.
type GroqProvider struct {
	client *protocolClient
}

// GroqConfig configures the Groq adapter.
type GroqConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewGroqProvider creates the Groq adapter.
func NewGroqProvider(cfg GroqConfig) *GroqProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = groqDefaultBaseURL
	}

	return &GroqProvider{
		client: newProtocolClient(models.ProviderGroq, baseURL, cfg.Timeout, map[string]any{
			"temperature": 0,
		}),
	}
}

func (p *GroqProvider) ID() models.ProviderID {
	return models.ProviderGroq
}

func (p *GroqProvider) Complete(ctx context.Context, apiKey, model string, messages []ChatMessage) (map[string]any, error) {
	return p.client.complete(ctx, apiKey, model, messages)
}

func (p *GroqProvider) StreamComplete(ctx context.Context, apiKey, model string, messages []ChatMessage) (*Stream, error) {
	return p.client.streamComplete(ctx, apiKey, model, messages)
}
