package providers

import (
	"context"
	"time"

	"provider_gateway/internal/models"
)

// unifiedBaseURLs maps each generically supported provider to its
// OpenAI-compatible endpoint. One adapter implementation fans out to all of
// them; providers needing bespoke behavior get their own adapter instead.
var unifiedBaseURLs = map[models.ProviderID]string{
	models.ProviderOpenAI:      "https://api.openai.com/v1",
	models.ProviderHuggingFace: "https://router.huggingface.co/v1",
	models.ProviderMistral:     "https://api.mistral.ai/v1",
	models.ProviderTogether:    "https://api.together.xyz/v1",
}

// UnifiedProvider serves any backend that speaks the shared chat-completion
// protocol. One instance per provider identifier.
type UnifiedProvider struct {
	id     models.ProviderID
	client *protocolClient
}

// NewUnifiedProvider creates the generic adapter for a provider identifier.
// Returns ErrUnsupportedProvider for identifiers with no known endpoint.
func NewUnifiedProvider(id models.ProviderID, timeout time.Duration) (*UnifiedProvider, error) {
	baseURL, ok := unifiedBaseURLs[id]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	return &UnifiedProvider{
		id:     id,
		client: newProtocolClient(id, baseURL, timeout, nil),
	}, nil
}

func (p *UnifiedProvider) ID() models.ProviderID {
	return p.id
}

func (p *UnifiedProvider) Complete(ctx context.Context, apiKey, model string, messages []ChatMessage) (map[string]any, error) {
	return p.client.complete(ctx, apiKey, model, messages)
}

func (p *UnifiedProvider) StreamComplete(ctx context.Context, apiKey, model string, messages []ChatMessage) (*Stream, error) {
	return p.client.streamComplete(ctx, apiKey, model, messages)
}
