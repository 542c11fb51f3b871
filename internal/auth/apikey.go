package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the default bcrypt cost factor
const DefaultBcryptCost = 12

// APIKeyManager verifies static machine-client API keys against their
// bcrypt hashes. Keys are configured as hash+role pairs; the plaintext key
// never reaches disk.
type APIKeyManager struct {
	keys map[string]string // bcrypt hash -> role
}

// NewAPIKeyManager builds a manager from configured hash->role pairs
func NewAPIKeyManager(keys map[string]string) *APIKeyManager {
	if keys == nil {
		keys = make(map[string]string)
	}
	return &APIKeyManager{keys: keys}
}

// HashKey hashes a plaintext API key for storage in configuration
func HashKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(bytes), nil
}

// Verify checks a plaintext key against the configured hashes and returns
// the role bound to the matching hash.
func (m *APIKeyManager) Verify(key string) (string, error) {
	if key == "" {
		return "", ErrUnauthorized
	}
	for hash, role := range m.keys {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
			return role, nil
		}
	}
	return "", ErrUnauthorized
}
