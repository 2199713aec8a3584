package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// sessionSecretBytes is the entropy of an opaque session secret: 32 random
// bytes, i.e. 256 bits.
const sessionSecretBytes = 32

// NewSessionSecret generates an opaque, URL-safe session secret and returns
// it together with its storage digest. The plaintext is handed to the client
// exactly once; only the digest is ever persisted.
func NewSessionSecret() (secret, digest string, err error) {
	b := make([]byte, sessionSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("error generating session secret: %w", err)
	}

	secret = base64.RawURLEncoding.EncodeToString(b)
	return secret, DigestSecret(secret), nil
}

// DigestSecret returns the SHA-256 hex digest of a session secret. The digest
// is deterministic so that a presented secret can be matched against stored
// records by equality; the secret's 256 bits of entropy make the unsalted
// digest preimage-resistant.
func DigestSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
