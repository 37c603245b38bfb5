package storage

import (
	"context"

	"github.com/google/uuid"

	"provider_gateway/internal/models"
)

// CredentialStore persists provider credentials. Implementations accept
// plaintext secrets and persist ciphertext only; stored ciphertext is never
// fed back through Encrypt, so repeated saves cannot double-encrypt.
type CredentialStore interface {
	// Create registers a credential for (owner, provider). Returns
	// ErrDuplicateCredential if the pair already exists.
	Create(ctx context.Context, owner Owner, provider models.ProviderID, apiKey string) (*models.ProviderCredential, error)

	// GetByID fetches a credential, enforcing ownership. Returns
	// ErrCredentialNotFound for missing ids and ErrNotOwner for foreign ones.
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*models.ProviderCredential, error)

	// GetByOwnerAndProvider fetches the unique credential for a pair.
	GetByOwnerAndProvider(ctx context.Context, ownerID string, provider models.ProviderID) (*models.ProviderCredential, error)

	// ListByOwner returns all of the owner's credentials, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.ProviderCredential, error)

	// Update re-encrypts and stores a new secret for an existing credential.
	Update(ctx context.Context, ownerID string, id uuid.UUID, apiKey string) (*models.ProviderCredential, error)

	// Delete removes a credential.
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// Owner identifies the caller a credential belongs to. Name feeds the
// derived slug; ID is the stable key.
type Owner struct {
	ID   string
	Name string
}
