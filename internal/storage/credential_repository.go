package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"provider_gateway/internal/models"
	"provider_gateway/internal/vault"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// CredentialRepository is the PostgreSQL-backed CredentialStore. Secrets go
// through the vault on the way in; rows only ever hold ciphertext.
//
// Schema (provider_credentials):
//
//	id uuid primary key, owner_id text, provider text,
//	encrypted_api_key text, slug text unique,
//	created_at timestamptz, updated_at timestamptz,
//	unique (owner_id, provider)
type CredentialRepository struct {
	db    *DB
	vault *vault.Vault
}

// NewCredentialRepository creates a repository bound to a vault.
func NewCredentialRepository(db *DB, v *vault.Vault) *CredentialRepository {
	return &CredentialRepository{db: db, vault: v}
}

func (r *CredentialRepository) Create(ctx context.Context, owner Owner, provider models.ProviderID, apiKey string) (*models.ProviderCredential, error) {
	encrypted, err := r.vault.Encrypt(apiKey)
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

	query := `
		INSERT INTO provider_credentials (id, owner_id, provider, encrypted_api_key, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.conn.ExecContext(ctx, query,
		cred.ID, cred.OwnerID, cred.Provider, cred.EncryptedAPIKey, cred.Slug, cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateCredential
		}
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	return cred, nil
}

func (r *CredentialRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	query := `
		SELECT id, owner_id, provider, encrypted_api_key, slug, created_at, updated_at
		FROM provider_credentials
		WHERE id = $1
	`

	err := r.db.conn.GetContext(ctx, &cred, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if cred.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	return &cred, nil
}

func (r *CredentialRepository) GetByOwnerAndProvider(ctx context.Context, ownerID string, provider models.ProviderID) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	query := `
		SELECT id, owner_id, provider, encrypted_api_key, slug, created_at, updated_at
		FROM provider_credentials
		WHERE owner_id = $1 AND provider = $2
	`

	err := r.db.conn.GetContext(ctx, &cred, query, ownerID, provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}

func (r *CredentialRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.ProviderCredential, error) {
	query := `
		SELECT id, owner_id, provider, encrypted_api_key, slug, created_at, updated_at
		FROM provider_credentials
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	var creds []*models.ProviderCredential
	if err := r.db.conn.SelectContext(ctx, &creds, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return creds, nil
}

func (r *CredentialRepository) Update(ctx context.Context, ownerID string, id uuid.UUID, apiKey string) (*models.ProviderCredential, error) {
	cred, err := r.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	encrypted, err := r.vault.Encrypt(apiKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `
		UPDATE provider_credentials
		SET encrypted_api_key = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4
	`
	if _, err := r.db.conn.ExecContext(ctx, query, encrypted, now, id, ownerID); err != nil {
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	cred.EncryptedAPIKey = encrypted
	cred.UpdatedAt = now
	return cred, nil
}

func (r *CredentialRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, ownerID, id); err != nil {
		return err
	}

	query := `DELETE FROM provider_credentials WHERE id = $1 AND owner_id = $2`
	if _, err := r.db.conn.ExecContext(ctx, query, id, ownerID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	return nil
}
