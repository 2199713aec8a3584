// Package sessions provides the PostgreSQL-backed repository for persisted
// login sessions. Only the digest of a session secret is ever stored here.
package sessions

import (
	"context"

	"github.com/taskkeeper/taskkeeper/internal/server/models"
)

// Repository defines persistence operations on session records.
//
// RevokeAll and RevokeOldest are single bulk mutations on the database side;
// two logins racing for the same user must not lose updates to each other.
type Repository interface {
	// Create inserts a new session record. Returns common.ErrorAlreadyExists
	// when the secret digest collides with an existing record.
	Create(ctx context.Context, session *models.Session) (*models.Session, error)

	// FindActiveByDigest returns the active, unexpired session whose stored
	// digest equals the given one, or common.ErrorNotFound.
	FindActiveByDigest(ctx context.Context, digest string) (*models.Session, error)

	// ListActive returns the user's active, unexpired sessions ordered by
	// creation time, oldest first.
	ListActive(ctx context.Context, userID string) ([]*models.Session, error)

	// Revoke flips a session to inactive. Returns true only when a
	// previously-active record was changed; revoking an already-inactive
	// session is a no-op returning false.
	Revoke(ctx context.Context, id string) (bool, error)

	// RevokeAll revokes every active session of the user and returns the
	// number of records changed.
	RevokeAll(ctx context.Context, userID string) (int64, error)

	// RevokeOldest revokes the user's active sessions beyond the keep newest
	// ones, in a single statement, and returns the number revoked.
	RevokeOldest(ctx context.Context, userID string, keep int) (int64, error)

	// DeleteExpired removes every session past its expiry, active or not,
	// and returns the number deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}
