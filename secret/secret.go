// Package secret issues the opaque per-project tokens agents present to the service.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// TokenBytes is the amount of randomness in a token.
const TokenBytes = 32

// NewToken returns TokenBytes random bytes encoded as unpadded URL-safe base64.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Equal compares a presented token with the stored one in constant time.
// An empty stored token never matches.
func Equal(stored, presented string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
