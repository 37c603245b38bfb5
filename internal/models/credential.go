package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderID enumerates supported provider identifiers.
type ProviderID string

const (
	ProviderGroq        ProviderID = "groq"
	ProviderOpenAI      ProviderID = "openai"
	ProviderHuggingFace ProviderID = "huggingface"
	ProviderMistral     ProviderID = "mistral"
	ProviderTogether    ProviderID = "together"
)

// SupportedProviders lists every provider the gateway accepts credentials for.
var SupportedProviders = []ProviderID{
	ProviderGroq,
	ProviderOpenAI,
	ProviderHuggingFace,
	ProviderMistral,
	ProviderTogether,
}

// CanonicalProviderID normalizes a provider identifier. Catalog entries,
// stored credentials and registry lookups all pass through here so the three
// never disagree on casing.
func CanonicalProviderID(s string) ProviderID {
	return ProviderID(strings.ToLower(strings.TrimSpace(s)))
}

// Valid reports whether the identifier is a member of the supported set.
func (p ProviderID) Valid() bool {
	for _, known := range SupportedProviders {
		if p == known {
			return true
		}
	}
	return false
}

func (p ProviderID) String() string {
	return string(p)
}

// ProviderCredential is one user's registered secret for one provider.
// EncryptedAPIKey is ciphertext from the vault; plaintext never leaves the
// request that carried it except through an explicit decrypt at point of use.
type ProviderCredential struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	OwnerID         string     `db:"owner_id" json:"-"`
	Provider        ProviderID `db:"provider" json:"provider"`
	EncryptedAPIKey string     `db:"encrypted_api_key" json:"-"`
	Slug            string     `db:"slug" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"-"`
}

// CredentialSlug derives the unique slug for an (owner, provider) pair.
func CredentialSlug(ownerName string, provider ProviderID) string {
	return Slugify(ownerName + "-" + string(provider))
}

// Slugify lowercases the input and collapses every run of non-alphanumeric
// characters into a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // trim leading hyphens
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
