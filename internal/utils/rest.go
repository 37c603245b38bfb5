package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body every non-2xx response carries.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondWithError writes a JSON error body with the given status code.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithJSON writes the payload as a JSON response. Payloads are
// marshaled before the status line is sent, so an unencodable payload still
// gets a clean 500 instead of a half-written body.
func RespondWithJSON(w http.ResponseWriter, code int, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
	return nil
}
