package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"provider_gateway/internal/gateway"
	"provider_gateway/internal/logging"
	"provider_gateway/internal/providers"
	"provider_gateway/internal/utils"
	"provider_gateway/internal/vault"
)

// completionBody is the wire format shared by both completion endpoints.
type completionBody struct {
	ModelName    string                  `json:"model_name"`
	Messages     []providers.ChatMessage `json:"messages"`
	CredentialID *uuid.UUID              `json:"credential_id,omitempty"`
	APIKey       string                  `json:"api_key,omitempty"`
}

func decodeCompletionBody(r *http.Request) (gateway.CompletionRequest, error) {
	var body completionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return gateway.CompletionRequest{}, err
	}
	return gateway.CompletionRequest{
		Messages:     body.Messages,
		ModelName:    body.ModelName,
		CredentialID: body.CredentialID,
		APIKey:       body.APIKey,
	}, nil
}

// allowRequest applies the per-caller rate limit. Limiter errors fail open;
// upstream providers enforce their own limits regardless.
func (d *Dependencies) allowRequest(w http.ResponseWriter, r *http.Request, callerID string) bool {
	if d.RateLimiter == nil {
		return true
	}

	allowed, remaining, resetAt, err := d.RateLimiter.AllowWithDetails(r.Context(), callerID, d.rateLimit)
	if err != nil {
		d.Logger.Warn("rate limiter unavailable", "caller", callerID, "error", err)
		return true
	}

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	if !allowed {
		utils.RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

// completionStatus maps gateway errors to HTTP status codes and a
// caller-safe message. Configuration faults come back generic.
func completionStatus(err error) (int, string) {
	var upstreamErr *providers.UpstreamError
	var cryptoErr *vault.CryptoError

	switch {
	case errors.Is(err, gateway.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, gateway.ErrModelNotFound):
		// Unknown model is a bad request, not a missing resource: the
		// resource is the completion endpoint, the model is an argument.
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, gateway.ErrCredentialNotFound):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, providers.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "provider request timed out"
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway, upstreamErr.Error()
	case errors.As(err, &cryptoErr), errors.Is(err, providers.ErrUnsupportedProvider):
		return http.StatusInternalServerError, "internal error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// handleCompletion is the synchronous completion endpoint.
//
// Flow:
//  1. Resolve caller from the service-key middleware
//  2. Rate limit
//  3. Decode body
//  4. Dispatch through the gateway
//  5. Audit + respond {"response": ...} or {"error": ...}
func (d *Dependencies) handleCompletion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	caller, ok := callerFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	if !d.allowRequest(w, r, caller.ID) {
		return
	}

	req, err := decodeCompletionBody(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	payload, err := d.Gateway.Complete(r.Context(), caller, req)
	d.audit(caller, req, false, start, err)
	if err != nil {
		status, message := completionStatus(err)
		utils.RespondWithError(w, status, message)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"response": payload})
}

// handlePlaygroundCompletion streams a completion over SSE. Failures before
// dispatch are ordinary JSON errors; once the stream is open, a mid-stream
// failure becomes a final error frame and the stream closes.
func (d *Dependencies) handlePlaygroundCompletion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	caller, ok := callerFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	if !d.allowRequest(w, r, caller.ID) {
		return
	}

	req, err := decodeCompletionBody(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	events, err := d.Gateway.StreamComplete(r.Context(), caller, req)
	if err != nil {
		d.audit(caller, req, true, start, err)
		status, message := completionStatus(err)
		utils.RespondWithError(w, status, message)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var streamErr error
	for event := range events {
		if event.Err != nil {
			streamErr = event.Err
			_, _ = fmt.Fprintf(w, "data: Error in chat completion: %s\n\n", event.Err)
			flusher.Flush()
			break
		}
		_, writeErr := fmt.Fprintf(w, "data: %s\n\n", event.Content)
		if writeErr != nil {
			break
		}
		flusher.Flush()
	}

	d.audit(caller, req, true, start, streamErr)
}

// audit records one completion call, best-effort.
func (d *Dependencies) audit(caller gateway.Caller, req gateway.CompletionRequest, streamed bool, start time.Time, err error) {
	if d.Audit == nil {
		return
	}

	record := logging.CompletionRecord{
		CallerID:   caller.ID,
		Model:      req.ModelName,
		Streamed:   streamed,
		Status:     "ok",
		DurationMS: time.Since(start).Milliseconds(),
	}
	if entry, found := d.Catalog.Snapshot().Lookup(req.ModelName); found {
		record.Provider = string(entry.Provider)
	}
	if err != nil {
		record.Status = "error"
		record.Error = err.Error()
	}
	d.Audit.Record(record)
}
