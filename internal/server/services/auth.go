// Package services implements the server-side application services. The auth
// service coordinates registration, login, access-token refresh, logout and
// identity resolution over the user directory, the session store, the
// password hasher and the token codec.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskkeeper/taskkeeper/internal/common"
	"github.com/taskkeeper/taskkeeper/internal/server/auth"
	"github.com/taskkeeper/taskkeeper/internal/server/models"
	"github.com/taskkeeper/taskkeeper/internal/server/repositories/users"
)

// SessionStore is the subset of the session store used by the auth service.
type SessionStore interface {
	Create(ctx context.Context, userID, device, ipAddress string) (string, *models.Session, error)
	FindActiveBySecret(ctx context.Context, secret string) (*models.Session, error)
	Revoke(ctx context.Context, id string) (bool, error)
	RevokeAll(ctx context.Context, userID string) (int64, error)
	EnforceCap(ctx context.Context, userID string) (int64, error)
}

// TokenCodec issues and verifies signed access tokens.
type TokenCodec interface {
	Issue(userID, email string) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// Credentials is the result of a successful login: a short-lived signed
// access token and a long-lived opaque session secret.
type Credentials struct {
	AccessToken   string
	SessionSecret string
}

// AuthService coordinates the authentication flows. All dependencies are
// injected at construction and immutable afterwards.
type AuthService struct {
	users    users.Repository
	sessions SessionStore
	hasher   auth.Hasher
	tokens   TokenCodec
	gate     *auth.Gate
}

func NewAuthService(users users.Repository, sessions SessionStore, hasher auth.Hasher, tokens TokenCodec, gate *auth.Gate) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		gate:     gate,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashPassword runs the expensive argon2 hash under the admission gate so a
// burst of registrations/logins cannot starve the process.
func (s *AuthService) hashPassword(ctx context.Context, password string) (string, error) {
	if err := s.gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer s.gate.Release()

	return s.hasher.Hash(password)
}

func (s *AuthService) verifyPassword(ctx context.Context, password, digest string) (bool, error) {
	if err := s.gate.Acquire(ctx); err != nil {
		return false, err
	}
	defer s.gate.Release()

	return s.hasher.Verify(password, digest), nil
}

// Register creates a new identity. It fails with common.ErrorAlreadyExists
// when the email is taken and never creates a session. The returned user
// carries no password hash.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrorValidation
	}

	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error checking user: %w", err)
	}
	if exists {
		return nil, common.ErrorAlreadyExists
	}

	digest, err := s.hashPassword(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: digest,
		IsActive:     true,
	})
	if err != nil {
		// Exists() and Create() race against concurrent registrations;
		// the unique index is authoritative.
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return publicProjection(user), nil
}

// Login verifies the password and, on success, stamps the last login, issues
// an access token, creates a session record, and evicts the oldest sessions
// beyond the per-user cap. The new session is created before cap enforcement
// and is therefore always retained.
//
// Unknown email and wrong password both fail with ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password, device, ipAddress string) (*Credentials, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	ok, err := s.verifyPassword(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, common.ErrInactiveUser
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("error updating last login: %w", err)
	}

	accessToken, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}

	secret, _, err := s.sessions.Create(ctx, user.ID, device, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	if _, err := s.sessions.EnforceCap(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("error enforcing session cap: %w", err)
	}

	return &Credentials{AccessToken: accessToken, SessionSecret: secret}, nil
}

// Refresh exchanges a valid session secret for a fresh access token. The
// session secret itself is not rotated; it stays valid until it expires or
// is revoked.
func (s *AuthService) Refresh(ctx context.Context, sessionSecret string) (string, error) {
	session, err := s.sessions.FindActiveBySecret(ctx, sessionSecret)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidSession
		}
		return "", fmt.Errorf("error looking up session: %w", err)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidSession
		}
		return "", fmt.Errorf("error fetching user: %w", err)
	}
	if !user.IsActive {
		return "", common.ErrInactiveUser
	}

	accessToken, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("error issuing access token: %w", err)
	}

	return accessToken, nil
}

// Logout revokes the session identified by the secret, provided it belongs
// to the given user. Returns false when no active session matches or the
// owner differs.
func (s *AuthService) Logout(ctx context.Context, userID, sessionSecret string) (bool, error) {
	session, err := s.sessions.FindActiveBySecret(ctx, sessionSecret)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error looking up session: %w", err)
	}

	if session.UserID != userID {
		return false, nil
	}

	return s.sessions.Revoke(ctx, session.ID)
}

// LogoutEverywhere revokes all active sessions of the user and returns the
// number revoked. Sessions of other users are untouched.
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID string) (int64, error) {
	count, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error revoking sessions: %w", err)
	}
	return count, nil
}

// Authenticate resolves an access token to its identity. It fails with
// common.ErrInvalidToken for bad/expired tokens and unknown subjects, and
// with common.ErrInactiveUser when the identity is disabled. The returned
// user carries no password hash.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrInactiveUser
	}

	return publicProjection(user), nil
}

// CurrentUser is the optional-auth shape of Authenticate: credential
// problems resolve to (nil, nil) so callers can treat "absent" and "invalid"
// uniformly, while infrastructure failures still propagate.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	user, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrInactiveUser) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// publicProjection strips fields that must never leave the service layer.
func publicProjection(user *models.User) *models.User {
	projection := *user
	projection.PasswordHash = ""
	return &projection
}
