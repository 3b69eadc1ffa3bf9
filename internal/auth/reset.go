package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// resetSecretBytes is the entropy of a password-reset secret (256 bits).
const resetSecretBytes = 32

// NewResetSecret returns a random URL-safe secret for a password-reset link
// and the hash to store in its place. Only the hash is persisted, so a
// database leak does not hand out working reset links.
func NewResetSecret() (secret, hash string, err error) {
	buf := make([]byte, resetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("auth: generating reset secret: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, HashResetSecret(secret), nil
}

// HashResetSecret is the lookup key for a secret: hex(sha256(secret)).
func HashResetSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
