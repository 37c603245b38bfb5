package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"provider_gateway/internal/catalog"
	"provider_gateway/internal/providers"
	"provider_gateway/internal/storage"
	"provider_gateway/internal/utils"
	"provider_gateway/internal/vault"
)

// Caller is the authenticated principal a request runs as. Supplied by the
// external authentication collaborator via middleware.
type Caller struct {
	ID   string
	Name string
}

// CompletionRequest is the transient value object for one completion call.
// Exactly one credential source must resolve: an inline APIKey, an explicit
// stored-credential reference, or the caller's unique credential for the
// model's provider.
type CompletionRequest struct {
	Messages     []providers.ChatMessage
	ModelName    string
	CredentialID *uuid.UUID
	APIKey       string
}

// StreamEvent is one frame of a streaming completion. Err is set on the
// terminal event only, after which the channel closes.
type StreamEvent struct {
	Content string
	Err     error
}

// AdapterResolver resolves provider identifiers to adapters.
type AdapterResolver interface {
	Resolve(providerID string) (providers.Provider, error)
}

var validRoles = map[string]bool{
	"system":    true,
	"user":      true,
	"assistant": true,
}

// Gateway validates completion requests and dispatches them to provider
// adapters, synchronously or as a relayed stream.
type Gateway struct {
	catalog     *catalog.Catalog
	registry    AdapterResolver
	credentials storage.CredentialStore
	vault       *vault.Vault
	logger      *utils.Logger
}

// New wires a gateway.
func New(c *catalog.Catalog, registry AdapterResolver, credentials storage.CredentialStore, v *vault.Vault, logger *utils.Logger) *Gateway {
	return &Gateway{
		catalog:     c,
		registry:    registry,
		credentials: credentials,
		vault:       v,
		logger:      logger,
	}
}

// dispatch is a fully validated request, ready for the upstream call.
type dispatch struct {
	adapter providers.Provider
	apiKey  string
	model   string
}

// prepare runs the fail-fast validation sequence:
//
//  1. model must exist in the current catalog snapshot
//  2. a credential must resolve for the caller and the model's provider
//  3. an adapter must exist for the provider
//  4. a stored credential must decrypt
//
// No upstream call happens here, so every failure is still an ordinary
// error response, never a partial stream.
func (g *Gateway) prepare(ctx context.Context, caller Caller, req CompletionRequest) (*dispatch, error) {
	if req.ModelName == "" {
		return nil, fmt.Errorf("%w: missing model_name", ErrValidation)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages cannot be empty", ErrValidation)
	}
	for _, msg := range req.Messages {
		if !validRoles[msg.Role] {
			return nil, fmt.Errorf("%w: unknown message role %q", ErrValidation, msg.Role)
		}
	}

	entry, ok := g.catalog.Snapshot().Lookup(req.ModelName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, req.ModelName)
	}

	apiKey, err := g.resolveCredential(ctx, caller, entry, req)
	if err != nil {
		return nil, err
	}

	adapter, err := g.registry.Resolve(string(entry.Provider))
	if err != nil {
		// Catalog and registry disagreeing is a configuration fault.
		g.logger.Error("adapter missing for cataloged provider", "provider", entry.Provider, "model", entry.Name)
		return nil, err
	}

	return &dispatch{adapter: adapter, apiKey: apiKey, model: entry.Name}, nil
}

func (g *Gateway) resolveCredential(ctx context.Context, caller Caller, entry catalog.Entry, req CompletionRequest) (string, error) {
	if req.APIKey != "" {
		return req.APIKey, nil
	}

	cred, err := g.lookupStored(ctx, caller, entry, req)
	if err != nil {
		return "", err
	}

	plaintext, decryptErr := g.vault.Decrypt(cred.EncryptedAPIKey)
	if decryptErr != nil {
		// A stored credential that fails decryption means the vault key and
		// the data disagree. Log it; the caller sees a generic failure.
		g.logger.Error("failed to decrypt stored credential", "credential", cred.ID, "error", decryptErr)
		return "", decryptErr
	}
	return plaintext, nil
}

func (g *Gateway) lookupStored(ctx context.Context, caller Caller, entry catalog.Entry, req CompletionRequest) (*credential, error) {
	if req.CredentialID != nil {
		cred, err := g.credentials.GetByID(ctx, caller.ID, *req.CredentialID)
		if err != nil {
			if errors.Is(err, storage.ErrCredentialNotFound) || errors.Is(err, storage.ErrNotOwner) {
				return nil, fmt.Errorf("%w: credential %s", ErrCredentialNotFound, req.CredentialID)
			}
			return nil, err
		}
		if cred.Provider != entry.Provider {
			return nil, fmt.Errorf("%w: model %q is not served by provider %q", ErrModelNotFound, entry.Name, cred.Provider)
		}
		return &credential{ID: cred.ID.String(), EncryptedAPIKey: cred.EncryptedAPIKey}, nil
	}

	cred, err := g.credentials.GetByOwnerAndProvider(ctx, caller.ID, entry.Provider)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, entry.Provider)
		}
		return nil, err
	}
	return &credential{ID: cred.ID.String(), EncryptedAPIKey: cred.EncryptedAPIKey}, nil
}

type credential struct {
	ID              string
	EncryptedAPIKey string
}

// Complete performs a synchronous completion and returns the full provider
// payload.
func (g *Gateway) Complete(ctx context.Context, caller Caller, req CompletionRequest) (map[string]any, error) {
	d, err := g.prepare(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	return d.adapter.Complete(ctx, d.apiKey, d.model, req.Messages)
}

// StreamComplete opens a streaming completion. Pre-dispatch failures return
// an error and no channel. Once the channel is returned, chunks arrive in
// upstream order; an upstream failure mid-stream is delivered as one final
// event with Err set, and the channel closes cleanly either way.
//
// The relay sends on a small fixed buffer, so a slow consumer stalls only
// its own upstream read. Cancelling ctx tears down the upstream connection.
func (g *Gateway) StreamComplete(ctx context.Context, caller Caller, req CompletionRequest) (<-chan StreamEvent, error) {
	d, err := g.prepare(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	stream, err := d.adapter.StreamComplete(ctx, d.apiKey, d.model, req.Messages)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 4)
	go func() {
		defer close(events)
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case events <- StreamEvent{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case events <- StreamEvent{Content: chunk}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
