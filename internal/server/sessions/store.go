// Package sessions implements the session-secret store: it generates opaque
// session secrets, persists their digests, and applies the session lifecycle
// policy (validity, revocation, per-user cap, expiry sweep) on top of the
// sessions repository.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskkeeper/taskkeeper/internal/server/auth"
	"github.com/taskkeeper/taskkeeper/internal/server/config"
	"github.com/taskkeeper/taskkeeper/internal/server/models"
	sessionsrepo "github.com/taskkeeper/taskkeeper/internal/server/repositories/sessions"
)

// Store manages persisted login sessions. The plaintext session secret is
// returned exactly once, at creation; afterwards the store only ever sees
// digests.
type Store struct {
	repo      sessionsrepo.Repository
	validity  time.Duration
	maxActive int
}

// NewStore constructs a Store with the session lifetime and per-user cap
// taken from the server configuration.
func NewStore(repo sessionsrepo.Repository, cfg *config.Config) *Store {
	return &Store{
		repo:      repo,
		validity:  cfg.SessionValidityDuration,
		maxActive: cfg.MaxActiveSessions,
	}
}

// Create generates a fresh session secret, persists its digest with
// expires_at = now + validity, and returns the plaintext secret together with
// the stored record. The secret cannot be recovered later.
func (s *Store) Create(ctx context.Context, userID, device, ipAddress string) (string, *models.Session, error) {
	if s.validity <= 0 {
		return "", nil, errors.New("session validity must be positive")
	}

	secret, digest, err := auth.NewSessionSecret()
	if err != nil {
		return "", nil, err
	}

	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		SecretDigest: digest,
		Device:       device,
		IPAddress:    ipAddress,
		IsActive:     true,
		ExpiresAt:    time.Now().Add(s.validity),
	}

	session, err = s.repo.Create(ctx, session)
	if err != nil {
		return "", nil, fmt.Errorf("error creating session: %w", err)
	}

	return secret, session, nil
}

// FindActiveBySecret digests the presented secret and returns the matching
// active, unexpired session. Lookup is by digest equality only; errors from
// the repository (including common.ErrorNotFound) pass through.
func (s *Store) FindActiveBySecret(ctx context.Context, secret string) (*models.Session, error) {
	return s.repo.FindActiveByDigest(ctx, auth.DigestSecret(secret))
}

// ListActive returns the user's active sessions, oldest first.
func (s *Store) ListActive(ctx context.Context, userID string) ([]*models.Session, error) {
	return s.repo.ListActive(ctx, userID)
}

// Revoke flips a single session to inactive. Returns true only when a
// previously-active record was changed.
func (s *Store) Revoke(ctx context.Context, id string) (bool, error) {
	return s.repo.Revoke(ctx, id)
}

// RevokeAll revokes every active session of the user.
func (s *Store) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.repo.RevokeAll(ctx, userID)
}

// EnforceCap revokes the user's oldest active sessions beyond the configured
// maximum. Enforcement is eventual: two racing logins may briefly exceed the
// cap, the next pass corrects it.
func (s *Store) EnforceCap(ctx context.Context, userID string) (int64, error) {
	return s.repo.RevokeOldest(ctx, userID, s.maxActive)
}

// SweepExpired deletes every session past its expiry, revoked or not.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
