package auth

import (
	"errors"
	"net/http"

	"provider_gateway/internal/utils"
)

// TokenHandler exchanges a service key for a short-lived playground JWT.
func TokenHandler(store ServiceKeyStore, jwtSecret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "API Key is required")
			return
		}

		record, err := store.Lookup(r.Context(), apiKey)
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API Key")
				return
			}
			utils.RespondWithError(w, http.StatusInternalServerError, "Error validating API Key")
			return
		}

		if record.Revoked {
			utils.RespondWithError(w, http.StatusUnauthorized, "API Key has been revoked")
			return
		}

		token, exp, err := GenerateJWT(record.ID, record.Name, jwtSecret)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Error generating token")
			return
		}

		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"exp":   exp,
		})
	}
}
