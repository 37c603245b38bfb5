package providers

import (
	"fmt"
	"time"

	"provider_gateway/internal/models"
)

// Registry resolves provider identifiers to adapters. The adapter set is
// fixed at construction: bespoke adapters first, then one generic adapter
// per remaining member of the supported-provider enumeration. Read-only
// after startup, safe for concurrent use.
type Registry struct {
	adapters map[models.ProviderID]Provider
}

// RegistryConfig configures adapter construction.
type RegistryConfig struct {
	UpstreamTimeout time.Duration
	GroqBaseURL     string // override for tests; empty means the real endpoint
}

// NewRegistry builds the adapter lookup table.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	adapters := map[models.ProviderID]Provider{
		models.ProviderGroq: NewGroqProvider(GroqConfig{
			BaseURL: cfg.GroqBaseURL,
			Timeout: cfg.UpstreamTimeout,
		}),
	}

	for _, id := range models.SupportedProviders {
		if _, bespoke := adapters[id]; bespoke {
			continue
		}
		adapter, err := NewUnifiedProvider(id, cfg.UpstreamTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to build adapter for %s: %w", id, err)
		}
		adapters[id] = adapter
	}

	return &Registry{adapters: adapters}, nil
}

// Resolve returns the adapter for a provider identifier. Identifiers are
// canonicalized first so catalog and credential spellings cannot diverge
// from registry keys.
func (r *Registry) Resolve(providerID string) (Provider, error) {
	id := models.CanonicalProviderID(providerID)

	adapter, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, providerID)
	}
	return adapter, nil
}

// Supported returns the identifiers with a registered adapter.
func (r *Registry) Supported() []models.ProviderID {
	ids := make([]models.ProviderID, 0, len(r.adapters))
	for _, id := range models.SupportedProviders {
		if _, ok := r.adapters[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
