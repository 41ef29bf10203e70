package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinevault/auth-service/internal/config"
	"github.com/cinevault/auth-service/internal/events"
	"github.com/cinevault/auth-service/internal/guard"
	"github.com/cinevault/auth-service/internal/logging"
	"github.com/cinevault/auth-service/internal/session"
	"github.com/cinevault/auth-service/internal/token"
	"github.com/cinevault/auth-service/internal/user"
)

type serviceFixture struct {
	service  *Service
	users    *fakeUserStore
	sessions *session.Manager
	tokens   *token.JWTService
	email    *fakeEmailService
	events   *fakePublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	authCfg := config.AuthConfig{
		AccessTokenSecret:    []byte("test-access-secret"),
		RefreshTokenSecret:   []byte("test-refresh-secret"),
		TokenIssuer:          "cinevault-auth",
		TokenAudience:        "cinevault",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}

	users := newFakeUserStore()
	sessions := session.NewManager(session.NewMemoryStore(), authCfg.RefreshTokenDuration, 5)
	tokens := token.NewJWTService(authCfg)
	emailSvc := newFakeEmailService()
	publisher := &fakePublisher{}

	svc := NewService(
		users,
		sessions,
		tokens,
		token.NewPasswordHasher(4), // minimum cost keeps tests fast
		guard.New(5, 2*time.Hour),
		emailSvc,
		publisher,
		logging.NewLogger(true),
	)

	return &serviceFixture{
		service:  svc,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		email:    emailSvc,
		events:   publisher,
	}
}

const testPassword = "Sup3r!secret"

func (f *serviceFixture) register(t *testing.T, username, email string) *user.User {
	t.Helper()
	u, _, err := f.service.Register(context.Background(), username, email, testPassword, ClientInfo{})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	u, pair, err := f.service.Register(ctx, "alice", "alice@example.com", testPassword, ClientInfo{IP: "1.2.3.4", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, user.RoleCustomer, u.Role)
	assert.False(t, u.IsEmailVerified)

	// Registration logs the user straight in.
	claims, err := f.tokens.Verify(pair.AccessToken, token.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	live, err := f.sessions.Contains(ctx, u.ID, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, live)

	require.True(t, f.email.waitForSend(), "verification email should be dispatched")
	sent, ok := f.email.lastSent()
	require.True(t, ok)
	assert.Equal(t, "verify", sent.Kind)
	assert.Equal(t, "alice@example.com", sent.To)
	assert.NotEmpty(t, sent.Token)

	assert.True(t, f.events.has(events.TypeUserRegistered))
}

func TestRegisterValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"username too short", "ab", "a@example.com", testPassword},
		{"username has spaces", "bad name", "a@example.com", testPassword},
		{"empty email", "alice", "", testPassword},
		{"malformed email", "alice", "not-an-email", testPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.service.Register(ctx, tt.username, tt.email, tt.password, ClientInfo{})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	t.Run("weak password lists all violations", func(t *testing.T) {
		_, _, err := f.service.Register(ctx, "alice", "alice@example.com", "weak", ClientInfo{})
		var weak *WeakPasswordError
		require.ErrorAs(t, err, &weak)
		assert.NotEmpty(t, weak.Violations)
	})
}

func TestRegisterDuplicates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@example.com")

	_, _, err := f.service.Register(ctx, "alice", "other@example.com", testPassword, ClientInfo{})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, _, err = f.service.Register(ctx, "bob", "alice@example.com", testPassword, ClientInfo{})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	registered := f.register(t, "alice", "alice@example.com")

	u, pair, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{IP: "1.2.3.4", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)
	assert.NotEmpty(t, pair.AccessToken)

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, "1.2.3.4", stored.LastLoginIP)

	assert.True(t, f.events.has(events.TypeUserLoggedIn))
}

func TestLoginUnknownUserIsIndistinguishable(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "alice", "alice@example.com")

	_, _, unknownErr := f.service.Login(context.Background(), "nobody", testPassword, ClientInfo{})
	_, _, wrongErr := f.service.Login(context.Background(), "alice", "Wrong!pass1", ClientInfo{})

	var unknownCreds, wrongCreds *InvalidCredentialsError
	require.ErrorAs(t, unknownErr, &unknownCreds)
	require.ErrorAs(t, wrongErr, &wrongCreds)

	// Same message either way; only the attempt counter differs.
	assert.Equal(t, wrongCreds.Error(), unknownCreds.Error())
	assert.Equal(t, -1, unknownCreds.RemainingAttempts)
	assert.Equal(t, 4, wrongCreds.RemainingAttempts)
}

func TestLoginLockout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@example.com")

	for i := 1; i <= 5; i++ {
		_, _, err := f.service.Login(ctx, "alice", "Wrong!pass1", ClientInfo{})
		var creds *InvalidCredentialsError
		require.ErrorAs(t, err, &creds, "attempt %d", i)
		assert.Equal(t, 5-i, creds.RemainingAttempts)
	}

	// Sixth attempt hits the lock, even with the correct password.
	_, _, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	var locked *AccountLockedError
	require.ErrorAs(t, err, &locked)
	assert.Greater(t, locked.RetryIn, time.Duration(0))
	assert.LessOrEqual(t, locked.RemainingMinutes(), 120)

	assert.True(t, f.events.has(events.TypeAccountLocked))
}

func TestLoginSuccessClearsFailureCount(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@example.com")

	for i := 0; i < 3; i++ {
		_, _, _ = f.service.Login(ctx, "alice", "Wrong!pass1", ClientInfo{})
	}

	_, _, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	require.NoError(t, err)

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginCount)
	assert.Nil(t, stored.LockedUntil)
}

func TestRefresh(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	registered := f.register(t, "alice", "alice@example.com")

	_, pair, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	require.NoError(t, err)

	accessToken, u, err := f.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	claims, err := f.tokens.Verify(accessToken, token.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	// The refresh token is not rotated and can be used again.
	_, _, err = f.service.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@example.com")

	_, pair, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	require.NoError(t, err)

	_, _, err = f.service.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrMissingRefreshToken)

	_, _, err = f.service.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// An access token never passes refresh verification.
	_, _, err = f.service.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshAfterLogoutIsRejected(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@example.com")

	_, pair, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, u.ID, pair.RefreshToken))

	// Signature still verifies, but the session is gone.
	_, _, err = f.service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Logging out again with the same token is fine.
	assert.NoError(t, f.service.Logout(ctx, u.ID, pair.RefreshToken))
}

func TestSessionBoundEvictsOldestRefreshToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@example.com")

	var pairs []token.Pair
	for i := 0; i < 6; i++ {
		_, pair, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}

	// Registration plus six logins: the two oldest sessions were evicted.
	_, _, err := f.service.Refresh(ctx, pairs[0].RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	for i := 1; i < 6; i++ {
		_, _, err := f.service.Refresh(ctx, pairs[i].RefreshToken)
		assert.NoError(t, err, "session %d should still be live", i)
	}
}

func TestLogoutAll(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@example.com")

	var pairs []token.Pair
	for i := 0; i < 3; i++ {
		_, pair, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}

	require.NoError(t, f.service.LogoutAll(ctx, u.ID))

	for i, pair := range pairs {
		_, _, err := f.service.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken, "session %d should be revoked", i)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@example.com")
	require.True(t, f.email.waitForSend()) // drain the verification email

	_, pair, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, f.service.RequestPasswordReset(ctx, "alice@example.com", 10*time.Minute))
	require.True(t, f.email.waitForSend(), "reset email should be dispatched")

	sent, ok := f.email.lastSent()
	require.True(t, ok)
	require.Equal(t, "reset", sent.Kind)
	require.NotEmpty(t, sent.Token)

	const newPassword = "N3w!password"
	require.NoError(t, f.service.ResetPassword(ctx, sent.Token, newPassword))

	// All sessions are revoked by the reset.
	_, _, err = f.service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Old password is dead, new one works.
	_, _, err = f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	var creds *InvalidCredentialsError
	assert.ErrorAs(t, err, &creds)

	_, _, err = f.service.Login(ctx, "alice", newPassword, ClientInfo{})
	assert.NoError(t, err)

	// The token is single-use.
	err = f.service.ResetPassword(ctx, sent.Token, "An0ther!pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	assert.True(t, f.events.has(events.TypePasswordReset))
}

func TestPasswordResetClearsLockout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@example.com")
	require.True(t, f.email.waitForSend())

	for i := 0; i < 5; i++ {
		_, _, _ = f.service.Login(ctx, "alice", "Wrong!pass1", ClientInfo{})
	}
	_, _, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	var locked *AccountLockedError
	require.ErrorAs(t, err, &locked)

	require.NoError(t, f.service.RequestPasswordReset(ctx, "alice@example.com", 10*time.Minute))
	require.True(t, f.email.waitForSend())
	sent, _ := f.email.lastSent()

	const newPassword = "N3w!password"
	require.NoError(t, f.service.ResetPassword(ctx, sent.Token, newPassword))

	// Completing the reset unlocks the account immediately.
	_, _, err = f.service.Login(ctx, "alice", newPassword, ClientInfo{})
	assert.NoError(t, err)
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Unknown email: same nil result, no email dispatched.
	require.NoError(t, f.service.RequestPasswordReset(ctx, "ghost@example.com", 10*time.Minute))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.email.count())
}

func TestResetPasswordRejectsBadInput(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	err := f.service.ResetPassword(ctx, "no-such-token", "N3w!password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	var weak *WeakPasswordError
	err = f.service.ResetPassword(ctx, "irrelevant", "weak")
	assert.ErrorAs(t, err, &weak)
}

func TestChangePassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@example.com")

	_, pair, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
	require.NoError(t, err)

	err = f.service.ChangePassword(ctx, u.ID, "Wrong!pass1", "N3w!password")
	assert.ErrorIs(t, err, ErrInvalidCurrentPassword)

	require.NoError(t, f.service.ChangePassword(ctx, u.ID, testPassword, "N3w!password"))

	// Sessions are revoked; the new password is live.
	_, _, err = f.service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, _, err = f.service.Login(ctx, "alice", "N3w!password", ClientInfo{})
	assert.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@example.com")
	require.True(t, f.email.waitForSend())
	sent, _ := f.email.lastSent()

	require.NoError(t, f.service.VerifyEmail(ctx, sent.Token))

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmailVerified)

	// Consumed tokens stop working.
	err = f.service.VerifyEmail(ctx, sent.Token)
	assert.ErrorIs(t, err, ErrInvalidVerifyToken)
}

func TestUpdateProfile(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@example.com")
	f.register(t, "bob", "bob@example.com")

	newUsername := "alice2"
	updated, err := f.service.UpdateProfile(ctx, u.ID, &newUsername, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)

	taken := "bob"
	_, err = f.service.UpdateProfile(ctx, u.ID, &taken, nil)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	takenEmail := "bob@example.com"
	_, err = f.service.UpdateProfile(ctx, u.ID, nil, &takenEmail)
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.service.UpdateProfile(ctx, u.ID, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)

	// Changing the email drops verified status and re-sends verification.
	newEmail := "alice@new.example.com"
	updated, err = f.service.UpdateProfile(ctx, u.ID, nil, &newEmail)
	require.NoError(t, err)
	assert.Equal(t, newEmail, updated.Email)
	assert.False(t, updated.IsEmailVerified)
}

func TestGetSecurityInfo(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@example.com")

	for i := 0; i < 2; i++ {
		_, _, err := f.service.Login(ctx, "alice", testPassword, ClientInfo{})
		require.NoError(t, err)
	}
	_, _, _ = f.service.Login(ctx, "alice", "Wrong!pass1", ClientInfo{})

	info, err := f.service.GetSecurityInfo(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, info.FailedAttempts)
	assert.False(t, info.IsLocked)
	assert.Equal(t, 3, info.ActiveSessions) // registration + two logins
	assert.NotNil(t, info.LastLoginAt)
}

func TestRegisterManyUsers(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		username := fmt.Sprintf("user%d", i)
		_, _, err := f.service.Register(ctx, username, username+"@example.com", testPassword, ClientInfo{})
		require.NoError(t, err)
	}

	_, _, err := f.service.Login(ctx, "user3", testPassword, ClientInfo{})
	assert.NoError(t, err)
}
