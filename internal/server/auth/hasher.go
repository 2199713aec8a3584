// Package auth contains the credential primitives of the server: password
// hashing, signed access tokens, opaque session secrets, and the admission
// gate that bounds concurrent hashing.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher is the one-way password hashing contract. Implementations must salt
// every digest, so hashing the same input twice yields different digests.
type Hasher interface {
	// Hash produces a storable digest of the plaintext password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the stored digest. A malformed
	// digest verifies as false rather than returning an error, so callers
	// treat "wrong password" and "corrupt record" identically.
	Verify(password, digest string) bool
}

// Argon2id parameters. Fixed in code; changing them only affects digests
// created afterwards, existing digests keep verifying with their embedded
// parameters.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonSaltLen        = 16
	argonKeyLen  uint32 = 32
)

// Argon2Hasher hashes passwords with argon2id and encodes digests in the
// standard PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2Hasher struct{}

func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("error generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Verify(password, digest string) bool {
	salt, key, memory, time, threads, ok := parsePHC(digest)
	if !ok {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(candidate, key) == 1
}

func parsePHC(digest string) (salt, key []byte, memory, time uint32, threads uint8, ok bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, false
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, 0, 0, 0, false
	}
	if memory == 0 || time == 0 || threads == 0 {
		return nil, nil, 0, 0, 0, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, nil, 0, 0, 0, false
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, 0, 0, 0, false
	}

	return salt, key, memory, time, threads, true
}
