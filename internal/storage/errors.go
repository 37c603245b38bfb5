package storage

import "errors"

var (
	// ErrCredentialNotFound is returned when a provider credential does not
	// exist.
	ErrCredentialNotFound = errors.New("provider credential not found")

	// ErrDuplicateCredential is returned when an (owner, provider) pair is
	// registered twice.
	ErrDuplicateCredential = errors.New("credential already registered for this provider")

	// ErrNotOwner is returned when a credential exists but belongs to a
	// different caller.
	ErrNotOwner = errors.New("credential not owned by caller")
)
