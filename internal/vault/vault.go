package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// CryptoError wraps any failure inside the vault boundary. Callers treat it
// as a configuration fault, never as user input error.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("vault: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Vault encrypts and decrypts provider credentials with AES-GCM. The key is
// fixed at construction and never mutated, so concurrent use needs no locking.
type Vault struct {
	key []byte
}

// New creates a vault from raw key bytes.
// The key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func New(key []byte) (*Vault, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, &CryptoError{Op: "init", Err: fmt.Errorf("invalid key size: must be 16, 24, or 32 bytes, got %d", len(key))}
	}

	return &Vault{key: key}, nil
}

// NewFromBase64 creates a vault from a base64-encoded key, the form the
// keygen tool emits and configuration carries.
func NewFromBase64(encodedKey string) (*Vault, error) {
	if encodedKey == "" {
		return nil, &CryptoError{Op: "init", Err: fmt.Errorf("encryption key cannot be empty")}
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: fmt.Errorf("failed to decode base64 key: %w", err)}
	}

	return New(key)
}

// NewFromPassphrase derives a 32-byte key from a passphrase and salt using
// scrypt. Deterministic for a given (passphrase, salt) pair, so restarts see
// the same key.
func NewFromPassphrase(passphrase, salt string) (*Vault, error) {
	if passphrase == "" {
		return nil, &CryptoError{Op: "init", Err: fmt.Errorf("passphrase cannot be empty")}
	}
	if salt == "" {
		return nil, &CryptoError{Op: "init", Err: fmt.Errorf("salt cannot be empty")}
	}

	key, err := scrypt.Key([]byte(passphrase), []byte(salt), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: fmt.Errorf("key derivation failed: %w", err)}
	}

	return New(key)
}

// GenerateKey generates a random key of the given size and returns it
// base64-encoded for storage in environment variables.
func GenerateKey(keySize int) (string, error) {
	if keySize != 16 && keySize != 24 && keySize != 32 {
		return "", &CryptoError{Op: "keygen", Err: fmt.Errorf("invalid key size: must be 16, 24, or 32 bytes")}
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", &CryptoError{Op: "keygen", Err: fmt.Errorf("failed to generate random key: %w", err)}
	}

	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt encrypts a plaintext secret and returns base64 ciphertext with the
// nonce prepended.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", &CryptoError{Op: "encrypt", Err: err}
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", &CryptoError{Op: "encrypt", Err: err}
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &CryptoError{Op: "encrypt", Err: fmt.Errorf("failed to generate nonce: %w", err)}
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64 ciphertext produced by Encrypt. Data not produced
// under the matching key fails GCM authentication and returns a CryptoError
// rather than garbage.
func (v *Vault) Decrypt(ciphertextBase64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: fmt.Errorf("failed to decode base64: %w", err)}
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: err}
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: err}
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", &CryptoError{Op: "decrypt", Err: fmt.Errorf("ciphertext too short")}
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: err}
	}

	return string(plaintext), nil
}
