package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkeeper/taskkeeper/internal/common"
	"github.com/taskkeeper/taskkeeper/internal/server/auth"
	"github.com/taskkeeper/taskkeeper/internal/server/models"
)

type fakeUsers struct {
	byEmail map[string]*models.User
	seq     int

	existsErr error
	getErr    error
	updateErr error

	events *[]string
}

func newFakeUsers(events *[]string) *fakeUsers {
	return &fakeUsers{byEmail: map[string]*models.User{}, events: events}
}

func (f *fakeUsers) add(email, passwordHash string, active bool) *models.User {
	f.seq++
	u := &models.User{
		ID:           fmt.Sprintf("u-%d", f.seq),
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     active,
		CreatedAt:    time.Now(),
	}
	f.byEmail[email] = u
	return u
}

func (f *fakeUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := f.byEmail[user.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	return f.add(user.Email, user.PasswordHash, user.IsActive), nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) Exists(ctx context.Context, email string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *fakeUsers) UpdateLastLogin(ctx context.Context, id string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.events != nil {
		*f.events = append(*f.events, "last-login")
	}
	for _, u := range f.byEmail {
		if u.ID == id {
			now := time.Now()
			u.LastLogin = &now
		}
	}
	return nil
}

type fakeSessions struct {
	seq      int
	sessions map[string]*models.Session
	secrets  map[string]string

	createErr error
	findErr   error

	events *[]string
}

func newFakeSessions(events *[]string) *fakeSessions {
	return &fakeSessions{
		sessions: map[string]*models.Session{},
		secrets:  map[string]string{},
		events:   events,
	}
}

func (f *fakeSessions) Create(ctx context.Context, userID, device, ipAddress string) (string, *models.Session, error) {
	if f.createErr != nil {
		return "", nil, f.createErr
	}
	f.seq++
	secret := fmt.Sprintf("secret-%d", f.seq)
	session := &models.Session{
		ID:        fmt.Sprintf("s-%d", f.seq),
		UserID:    userID,
		Device:    device,
		IPAddress: ipAddress,
		IsActive:  true,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	f.sessions[session.ID] = session
	f.secrets[secret] = session.ID
	if f.events != nil {
		*f.events = append(*f.events, "session-create")
	}
	return secret, session, nil
}

func (f *fakeSessions) FindActiveBySecret(ctx context.Context, secret string) (*models.Session, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	id, ok := f.secrets[secret]
	if !ok {
		return nil, common.ErrorNotFound
	}
	session := f.sessions[id]
	if !session.IsActive {
		return nil, common.ErrorNotFound
	}
	return session, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, id string) (bool, error) {
	session, ok := f.sessions[id]
	if !ok || !session.IsActive {
		return false, nil
	}
	session.IsActive = false
	return true, nil
}

func (f *fakeSessions) RevokeAll(ctx context.Context, userID string) (int64, error) {
	var count int64
	for _, session := range f.sessions {
		if session.UserID == userID && session.IsActive {
			session.IsActive = false
			count++
		}
	}
	return count, nil
}

func (f *fakeSessions) EnforceCap(ctx context.Context, userID string) (int64, error) {
	if f.events != nil {
		*f.events = append(*f.events, "enforce-cap")
	}
	return 0, nil
}

func (f *fakeSessions) activeCount(userID string) int {
	count := 0
	for _, session := range f.sessions {
		if session.UserID == userID && session.IsActive {
			count++
		}
	}
	return count
}

// fakeHasher keeps tests fast; the real argon2 parameters are exercised in
// the auth package and in the end-to-end test below.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "h:" + password, nil }

func (fakeHasher) Verify(password, digest string) bool { return digest == "h:"+password }

type fakeCodec struct {
	seq      int
	claims   map[string]*auth.Claims
	issueErr error
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{claims: map[string]*auth.Claims{}}
}

func (f *fakeCodec) Issue(userID, email string) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.seq++
	token := fmt.Sprintf("token-%d", f.seq)
	claims := &auth.Claims{UserID: userID, TokenType: auth.TokenTypeAccess}
	claims.Subject = email
	f.claims[token] = claims
	return token, nil
}

func (f *fakeCodec) Verify(token string) (*auth.Claims, error) {
	claims, ok := f.claims[token]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

type fixture struct {
	users    *fakeUsers
	sessions *fakeSessions
	codec    *fakeCodec
	events   []string
	svc      *AuthService
}

func newFixture() *fixture {
	f := &fixture{}
	f.users = newFakeUsers(&f.events)
	f.sessions = newFakeSessions(&f.events)
	f.codec = newFakeCodec()
	f.svc = NewAuthService(f.users, f.sessions, fakeHasher{}, f.codec, auth.NewGate(0))
	return f
}

func TestRegister_CreatesActiveUserWithoutSession(t *testing.T) {
	f := newFixture()

	user, err := f.svc.Register(context.Background(), "Alice@Example.com ", "pw")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, "h:pw", f.users.byEmail["alice@example.com"].PasswordHash)
	assert.Empty(t, f.sessions.sessions)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture()
	f.users.add("a@b.c", "h:pw", true)

	_, err := f.svc.Register(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_EmptyInput(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Register(context.Background(), "", "pw")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.Register(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestLogin_UnknownEmailAndWrongPasswordSameError(t *testing.T) {
	f := newFixture()
	f.users.add("a@b.c", "h:pw", true)

	_, errUnknown := f.svc.Login(context.Background(), "nobody@b.c", "pw", "", "")
	_, errWrongPw := f.svc.Login(context.Background(), "a@b.c", "bad", "", "")

	assert.ErrorIs(t, errUnknown, common.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPw, common.ErrInvalidCredentials)
}

func TestLogin_InactiveUser(t *testing.T) {
	f := newFixture()
	f.users.add("a@b.c", "h:pw", false)

	_, err := f.svc.Login(context.Background(), "a@b.c", "pw", "", "")
	assert.ErrorIs(t, err, common.ErrInactiveUser)
}

func TestLogin_IssuesCredentialsAndEnforcesCapAfterCreate(t *testing.T) {
	f := newFixture()
	user := f.users.add("a@b.c", "h:pw", true)

	creds, err := f.svc.Login(context.Background(), "a@b.c", "pw", "cli", "10.0.0.1")
	require.NoError(t, err)

	assert.NotEmpty(t, creds.AccessToken)
	assert.NotEmpty(t, creds.SessionSecret)
	assert.NotNil(t, user.LastLogin)
	assert.Equal(t, []string{"last-login", "session-create", "enforce-cap"}, f.events)

	session := f.sessions.sessions[f.sessions.secrets[creds.SessionSecret]]
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, "cli", session.Device)
	assert.Equal(t, "10.0.0.1", session.IPAddress)
}

func TestLogin_SessionCreateError(t *testing.T) {
	f := newFixture()
	f.users.add("a@b.c", "h:pw", true)
	f.sessions.createErr = errors.New("db down")

	_, err := f.svc.Login(context.Background(), "a@b.c", "pw", "", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRefresh_IssuesNewTokenWithoutRotatingSecret(t *testing.T) {
	f := newFixture()
	f.users.add("a@b.c", "h:pw", true)

	creds, err := f.svc.Login(context.Background(), "a@b.c", "pw", "", "")
	require.NoError(t, err)

	sessionsBefore := len(f.sessions.secrets)

	token, err := f.svc.Refresh(context.Background(), creds.SessionSecret)
	require.NoError(t, err)
	assert.NotEqual(t, creds.AccessToken, token)

	// Same secret keeps working and no new session record appeared.
	assert.Equal(t, sessionsBefore, len(f.sessions.secrets))
	_, err = f.svc.Refresh(context.Background(), creds.SessionSecret)
	assert.NoError(t, err)
}

func TestRefresh_UnknownSecret(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Refresh(context.Background(), "no-such-secret")
	assert.ErrorIs(t, err, common.ErrInvalidSession)
}

func TestRefresh_InactiveOwner(t *testing.T) {
	f := newFixture()
	user := f.users.add("a@b.c", "h:pw", true)

	creds, err := f.svc.Login(context.Background(), "a@b.c", "pw", "", "")
	require.NoError(t, err)

	user.IsActive = false

	_, err = f.svc.Refresh(context.Background(), creds.SessionSecret)
	assert.ErrorIs(t, err, common.ErrInactiveUser)
}

func TestLogout_RevokesOwnSessionOnly(t *testing.T) {
	f := newFixture()
	f.users.add("a@b.c", "h:pw", true)
	other := f.users.add("x@y.z", "h:pw", true)

	creds, err := f.svc.Login(context.Background(), "a@b.c", "pw", "", "")
	require.NoError(t, err)
	session := f.sessions.sessions[f.sessions.secrets[creds.SessionSecret]]

	// Someone else's user id must not revoke the session.
	ok, err := f.svc.Logout(context.Background(), other.ID, creds.SessionSecret)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, session.IsActive)

	ok, err = f.svc.Logout(context.Background(), session.UserID, creds.SessionSecret)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, session.IsActive)

	// Revoked secret no longer refreshes, and a second logout is a no-op.
	_, err = f.svc.Refresh(context.Background(), creds.SessionSecret)
	assert.ErrorIs(t, err, common.ErrInvalidSession)

	ok, err = f.svc.Logout(context.Background(), session.UserID, creds.SessionSecret)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogoutEverywhere_RevokesOnlyThatUser(t *testing.T) {
	f := newFixture()
	user := f.users.add("a@b.c", "h:pw", true)
	other := f.users.add("x@y.z", "h:pw", true)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(context.Background(), "a@b.c", "pw", "", "")
		require.NoError(t, err)
	}
	_, err := f.svc.Login(context.Background(), "x@y.z", "pw", "", "")
	require.NoError(t, err)

	count, err := f.svc.LogoutEverywhere(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, 0, f.sessions.activeCount(user.ID))
	assert.Equal(t, 1, f.sessions.activeCount(other.ID))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture()
	user := f.users.add("a@b.c", "h:pw", true)

	token, err := f.codec.Issue(user.ID, user.Email)
	require.NoError(t, err)

	got, err := f.svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.PasswordHash)

	_, err = f.svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	user.IsActive = false
	_, err = f.svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, common.ErrInactiveUser)
}

func TestAuthenticate_UnknownSubject(t *testing.T) {
	f := newFixture()

	token, err := f.codec.Issue("u-9", "gone@b.c")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestCurrentUser_NilOnCredentialProblems(t *testing.T) {
	f := newFixture()

	user, err := f.svc.CurrentUser(context.Background(), "garbage")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCurrentUser_PropagatesInfraErrors(t *testing.T) {
	f := newFixture()
	user := f.users.add("a@b.c", "h:pw", true)

	token, err := f.codec.Issue(user.ID, user.Email)
	require.NoError(t, err)

	f.users.getErr = errors.New("db down")
	_, err = f.svc.CurrentUser(context.Background(), token)
	require.Error(t, err)
}

// Full lifecycle against the real hasher and token codec.
func TestAuthService_Lifecycle(t *testing.T) {
	events := []string{}
	usersRepo := newFakeUsers(&events)
	sessionsStore := newFakeSessions(&events)
	codec := auth.NewTokenCodec([]byte("test-signing-key"), 30*time.Minute)
	svc := NewAuthService(usersRepo, sessionsStore, auth.NewArgon2Hasher(), codec, auth.NewGate(0))

	ctx := context.Background()

	registered, err := svc.Register(ctx, "user@example.com", "s3cret")
	require.NoError(t, err)

	creds, err := svc.Login(ctx, "user@example.com", "s3cret", "web", "127.0.0.1")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, creds.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, got.ID)

	refreshed, err := svc.Refresh(ctx, creds.SessionSecret)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, refreshed)
	require.NoError(t, err)

	ok, err := svc.Logout(ctx, registered.ID, creds.SessionSecret)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Refresh(ctx, creds.SessionSecret)
	assert.ErrorIs(t, err, common.ErrInvalidSession)
}
