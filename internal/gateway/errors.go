package gateway

import "errors"

var (
	// ErrValidation is returned for malformed completion requests before any
	// lookup happens.
	ErrValidation = errors.New("invalid completion request")

	// ErrModelNotFound is returned when the requested model is not in the
	// current catalog snapshot, or is not served by the referenced
	// credential's provider.
	ErrModelNotFound = errors.New("model not found")

	// ErrCredentialNotFound is returned when no usable credential resolves
	// for the caller and the model's provider.
	ErrCredentialNotFound = errors.New("no API key registered for provider")
)
