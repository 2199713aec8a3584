package models

import "time"

// Session is a persisted, revocable login session. SecretDigest is the
// SHA-256 hex digest of the opaque session secret; the plaintext secret is
// returned to the client once at login and never stored.
//
// Device, IPAddress and ExpiresAt are fixed at creation. IsActive only ever
// transitions true → false; sweeping deletes rows past ExpiresAt regardless
// of IsActive.
type Session struct {
	ID           string
	UserID       string
	SecretDigest string
	Device       string
	IPAddress    string
	IsActive     bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
