// Package keybackend stores the API keys that unlock admin endpoints.
package keybackend

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/sagarc03/storefront"
)

// MapKeyStore verifies keys against an in-memory map. Secrets are kept only
// as SHA-256 digests.
type MapKeyStore struct {
	keys map[string][sha256.Size]byte
}

// NewMapKeyStore creates a store from an access key to secret key mapping.
func NewMapKeyStore(keys map[string]string) *MapKeyStore {
	digests := make(map[string][sha256.Size]byte, len(keys))
	for access, secret := range keys {
		digests[access] = sha256.Sum256([]byte(secret))
	}
	return &MapKeyStore{keys: digests}
}

// Verify checks secretKey against the secret registered for accessKey.
//
// Returns:
//   - error: wraps storefront.ErrUnauthorized together with ErrKeyNotFound
//     or ErrSecretMismatch
func (s *MapKeyStore) Verify(accessKey, secretKey string) error {
	want, found := s.keys[accessKey]
	if !found {
		return fmt.Errorf("%w: %w", storefront.ErrUnauthorized, ErrKeyNotFound)
	}

	got := sha256.Sum256([]byte(secretKey))
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
		return fmt.Errorf("%w: %w", storefront.ErrUnauthorized, ErrSecretMismatch)
	}

	return nil
}

// Len returns the number of registered keys.
func (s *MapKeyStore) Len() int {
	return len(s.keys)
}
