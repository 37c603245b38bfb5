package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"provider_gateway/internal/models"
	"provider_gateway/internal/vault"
)

// MemoryCredentialStore is an in-process CredentialStore for tests and local
// development without PostgreSQL. It enforces the same invariants as the SQL
// repository, including the (owner, provider) uniqueness constraint.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	vault *vault.Vault
	byID  map[uuid.UUID]*models.ProviderCredential
}

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore(v *vault.Vault) *MemoryCredentialStore {
	return &MemoryCredentialStore{
		vault: v,
		byID:  make(map[uuid.UUID]*models.ProviderCredential),
	}
}

func (s *MemoryCredentialStore) Create(_ context.Context, owner Owner, provider models.ProviderID, apiKey string) (*models.ProviderCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cred := range s.byID {
		if cred.OwnerID == owner.ID && cred.Provider == provider {
			return nil, ErrDuplicateCredential
		}
	}

	encrypted, err := s.vault.Encrypt(apiKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cred := &models.ProviderCredential{
		ID:              uuid.New(),
		OwnerID:         owner.ID,
		Provider:        provider,
		EncryptedAPIKey: encrypted,
		Slug:            models.CredentialSlug(owner.Name, provider),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.byID[cred.ID] = cred

	clone := *cred
	return &clone, nil
}

func (s *MemoryCredentialStore) GetByID(_ context.Context, ownerID string, id uuid.UUID) (*models.ProviderCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byID[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	if cred.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	clone := *cred
	return &clone, nil
}

func (s *MemoryCredentialStore) GetByOwnerAndProvider(_ context.Context, ownerID string, provider models.ProviderID) (*models.ProviderCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cred := range s.byID {
		if cred.OwnerID == ownerID && cred.Provider == provider {
			clone := *cred
			return &clone, nil
		}
	}
	return nil, ErrCredentialNotFound
}

func (s *MemoryCredentialStore) ListByOwner(_ context.Context, ownerID string) ([]*models.ProviderCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var creds []*models.ProviderCredential
	for _, cred := range s.byID {
		if cred.OwnerID == ownerID {
			clone := *cred
			creds = append(creds, &clone)
		}
	}

	sort.Slice(creds, func(i, j int) bool {
		return creds[i].CreatedAt.After(creds[j].CreatedAt)
	})
	return creds, nil
}

func (s *MemoryCredentialStore) Update(ctx context.Context, ownerID string, id uuid.UUID, apiKey string) (*models.ProviderCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byID[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	if cred.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	encrypted, err := s.vault.Encrypt(apiKey)
	if err != nil {
		return nil, err
	}

	cred.EncryptedAPIKey = encrypted
	cred.UpdatedAt = time.Now().UTC()

	clone := *cred
	return &clone, nil
}

func (s *MemoryCredentialStore) Delete(_ context.Context, ownerID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byID[id]
	if !ok {
		return ErrCredentialNotFound
	}
	if cred.OwnerID != ownerID {
		return ErrNotOwner
	}

	delete(s.byID, id)
	return nil
}
