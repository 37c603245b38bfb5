package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"provider_gateway/internal/cache"
	"provider_gateway/internal/models"
	"provider_gateway/internal/storage"
	"provider_gateway/internal/utils"
)

// credentialSummary is the list view of a credential. Secrets stay out.
type credentialSummary struct {
	ID        uuid.UUID `json:"id"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// credentialDetail is the single-record view, including the decrypted secret.
type credentialDetail struct {
	ID        uuid.UUID `json:"id"`
	Provider  string    `json:"provider"`
	APIKey    string    `json:"api_key"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func credentialListKey(ownerID string) string {
	return cache.Key("credentials", ownerID, "list")
}

func modelListPrefix(ownerID string) string {
	return cache.Key("models", ownerID) + ":"
}

// invalidateCredentialViews drops the owner's cached credential list and
// model listings. Runs synchronously before the mutation response is sent,
// so the next read reflects the change.
func (d *Dependencies) invalidateCredentialViews(ctx context.Context, ownerID string) {
	if err := d.Cache.Invalidate(ctx, credentialListKey(ownerID)); err != nil {
		d.Logger.Warn("failed to invalidate credential list", "owner", ownerID, "error", err)
	}
	if err := d.Cache.InvalidatePrefix(ctx, modelListPrefix(ownerID)); err != nil {
		d.Logger.Warn("failed to invalidate model listings", "owner", ownerID, "error", err)
	}
}

// handleListCredentials returns the caller's registered credentials without
// secrets. The rendered list is cached per caller.
func (d *Dependencies) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	ctx := r.Context()

	body, err := d.Cache.GetOrCompute(ctx, credentialListKey(caller.ID), d.credentialTTL, func(ctx context.Context) ([]byte, error) {
		creds, err := d.Credentials.ListByOwner(ctx, caller.ID)
		if err != nil {
			return nil, err
		}
		summaries := make([]credentialSummary, 0, len(creds))
		for _, cred := range creds {
			summaries = append(summaries, credentialSummary{
				ID:        cred.ID,
				Provider:  string(cred.Provider),
				CreatedAt: cred.CreatedAt,
			})
		}
		return json.Marshal(summaries)
	})
	if err != nil {
		d.Logger.Error("failed to list credentials", "owner", caller.ID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleCreateCredential registers a provider API key for the caller.
func (d *Dependencies) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	ctx := r.Context()

	var body struct {
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	provider := models.CanonicalProviderID(body.Provider)
	if !provider.Valid() {
		utils.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("unsupported provider %q", body.Provider))
		return
	}
	if body.APIKey == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	cred, err := d.Credentials.Create(ctx, storage.Owner{ID: caller.ID, Name: caller.Name}, provider, body.APIKey)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateCredential) {
			utils.RespondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("you already have an API key registered for %s", provider))
			return
		}
		d.Logger.Error("failed to create credential", "owner", caller.ID, "provider", provider, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	d.invalidateCredentialViews(ctx, caller.ID)

	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"id":         cred.ID,
		"provider":   cred.Provider,
		"slug":       cred.Slug,
		"created_at": cred.CreatedAt,
	})
}

// credentialID parses the {id} path segment.
func credentialID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

// handleGetCredential returns one credential with its decrypted secret.
// Foreign and missing records both read as 404 so ownership is not probeable.
func (d *Dependencies) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	id, err := credentialID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	cred, err := d.Credentials.GetByID(r.Context(), caller.ID, id)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) || errors.Is(err, storage.ErrNotOwner) {
			utils.RespondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		d.Logger.Error("failed to fetch credential", "owner", caller.ID, "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	plaintext, err := d.Vault.Decrypt(cred.EncryptedAPIKey)
	if err != nil {
		d.Logger.Error("failed to decrypt credential", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, credentialDetail{
		ID:        cred.ID,
		Provider:  string(cred.Provider),
		APIKey:    plaintext,
		Slug:      cred.Slug,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	})
}

// handleUpdateCredential replaces the stored secret for one credential.
func (d *Dependencies) handleUpdateCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	ctx := r.Context()

	id, err := credentialID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.APIKey == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	cred, err := d.Credentials.Update(ctx, caller.ID, id, body.APIKey)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) || errors.Is(err, storage.ErrNotOwner) {
			utils.RespondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		d.Logger.Error("failed to update credential", "owner", caller.ID, "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	d.invalidateCredentialViews(ctx, caller.ID)

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"id":         cred.ID,
		"provider":   cred.Provider,
		"updated_at": cred.UpdatedAt,
	})
}

// handleDeleteCredential removes one credential.
func (d *Dependencies) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	ctx := r.Context()

	id, err := credentialID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	if err := d.Credentials.Delete(ctx, caller.ID, id); err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) || errors.Is(err, storage.ErrNotOwner) {
			utils.RespondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		d.Logger.Error("failed to delete credential", "owner", caller.ID, "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	d.invalidateCredentialViews(ctx, caller.ID)

	w.WriteHeader(http.StatusNoContent)
}
