package auth

import (
	"context"
	"errors"

	"provider_gateway/internal/utils"
)

// ErrKeyNotFound is returned when a service key does not resolve to a caller.
var ErrKeyNotFound = errors.New("service key not found")

// CallerRecord is the identity a service key resolves to. ID is the stable
// owner identifier credentials are scoped by; Name feeds credential slugs.
type CallerRecord struct {
	ID      string
	Name    string
	Revoked bool
}

// ServiceKeyStore resolves plaintext service keys into caller identities.
type ServiceKeyStore interface {
	Lookup(ctx context.Context, plaintextKey string) (*CallerRecord, error)
}

// InMemoryServiceKeyStore keeps service keys indexed by hash so plaintext
// keys never sit in process memory longer than a lookup.
type InMemoryServiceKeyStore struct {
	keys map[string]*CallerRecord
}

func NewInMemoryServiceKeyStore() *InMemoryServiceKeyStore {
	return &InMemoryServiceKeyStore{
		keys: make(map[string]*CallerRecord),
	}
}

// Add registers a plaintext key for a caller. Intended for seeding from
// configuration at startup.
func (s *InMemoryServiceKeyStore) Add(plaintextKey string, record CallerRecord) {
	s.keys[utils.HashString(plaintextKey)] = &record
}

func (s *InMemoryServiceKeyStore) Lookup(_ context.Context, plaintextKey string) (*CallerRecord, error) {
	rec, ok := s.keys[utils.HashString(plaintextKey)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	clone := *rec
	return &clone, nil
}
