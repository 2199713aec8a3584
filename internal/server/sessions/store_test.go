package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkeeper/taskkeeper/internal/server/auth"
	"github.com/taskkeeper/taskkeeper/internal/server/config"
	"github.com/taskkeeper/taskkeeper/internal/server/models"
)

type fakeRepo struct {
	created *models.Session

	createErr error

	findDigest string
	findOut    *models.Session
	findErr    error

	revokeOldestUser string
	revokeOldestKeep int
	revokeOldestOut  int64

	revokeAllOut int64
	deleteOut    int64
}

func (f *fakeRepo) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = session
	session.CreatedAt = time.Now()
	return session, nil
}

func (f *fakeRepo) FindActiveByDigest(ctx context.Context, digest string) (*models.Session, error) {
	f.findDigest = digest
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRepo) ListActive(ctx context.Context, userID string) ([]*models.Session, error) {
	return nil, nil
}

func (f *fakeRepo) Revoke(ctx context.Context, id string) (bool, error) {
	return true, nil
}

func (f *fakeRepo) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return f.revokeAllOut, nil
}

func (f *fakeRepo) RevokeOldest(ctx context.Context, userID string, keep int) (int64, error) {
	f.revokeOldestUser = userID
	f.revokeOldestKeep = keep
	return f.revokeOldestOut, nil
}

func (f *fakeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return f.deleteOut, nil
}

func newStore(repo *fakeRepo) *Store {
	cfg := &config.Config{
		SessionValidityDuration: time.Hour,
		MaxActiveSessions:       5,
	}
	return NewStore(repo, cfg)
}

func TestCreate_PersistsDigestNotSecret(t *testing.T) {
	repo := &fakeRepo{}
	s := newStore(repo)

	secret, session, err := s.Create(context.Background(), "u1", "web", "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.NotEmpty(t, secret)
	assert.NotEqual(t, secret, repo.created.SecretDigest)
	assert.Equal(t, auth.DigestSecret(secret), repo.created.SecretDigest)
	assert.Equal(t, "u1", repo.created.UserID)
	assert.Equal(t, "web", repo.created.Device)
	assert.Equal(t, "127.0.0.1", repo.created.IPAddress)
	assert.True(t, repo.created.IsActive)
	assert.True(t, repo.created.ExpiresAt.After(time.Now()))
	assert.NotEmpty(t, repo.created.ID)
}

func TestCreate_RepoErrorWrapped(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("db down")}
	s := newStore(repo)

	_, _, err := s.Create(context.Background(), "u1", "web", "")
	require.Error(t, err)
}

func TestCreate_RejectsNonPositiveValidity(t *testing.T) {
	s := NewStore(&fakeRepo{}, &config.Config{SessionValidityDuration: 0, MaxActiveSessions: 5})

	_, _, err := s.Create(context.Background(), "u1", "web", "")
	require.Error(t, err)
}

func TestFindActiveBySecret_LooksUpByDigest(t *testing.T) {
	want := &models.Session{ID: "s1", UserID: "u1"}
	repo := &fakeRepo{findOut: want}
	s := newStore(repo)

	got, err := s.FindActiveBySecret(context.Background(), "opaque-secret")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, auth.DigestSecret("opaque-secret"), repo.findDigest)
}

func TestEnforceCap_UsesConfiguredMaximum(t *testing.T) {
	repo := &fakeRepo{revokeOldestOut: 2}
	s := newStore(repo)

	count, err := s.EnforceCap(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, "u1", repo.revokeOldestUser)
	assert.Equal(t, 5, repo.revokeOldestKeep)
}

func TestSweepExpired_DelegatesToRepo(t *testing.T) {
	repo := &fakeRepo{deleteOut: 7}
	s := newStore(repo)

	count, err := s.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
