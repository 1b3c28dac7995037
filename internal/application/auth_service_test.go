package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/testfixtures"
)

type authEnv struct {
	harness *testfixtures.SQLiteHarness
	factory *testfixtures.ServiceFactory
	svc     *application.AuthService
}

func newAuthEnv(t *testing.T) authEnv {
	t.Helper()
	harness := testfixtures.NewSQLiteHarness(t)
	factory := testfixtures.NewServiceFactory()
	return authEnv{harness: harness, factory: factory, svc: factory.NewAuthService(harness.Store)}
}

func (e authEnv) register(t *testing.T, email string) application.User {
	t.Helper()
	user, err := e.svc.Register(context.Background(), application.RegisterParams{
		Email:    email,
		Password: "s3cret-pass",
		Name:     "Test User",
	})
	require.NoError(t, err)
	return user
}

func (e authEnv) login(t *testing.T, email string) application.AuthResult {
	t.Helper()
	result, err := e.svc.Login(context.Background(), application.LoginParams{
		Email:    email,
		Password: "s3cret-pass",
		Client:   application.ClientMeta{UserAgent: "go-test", IPAddress: "192.0.2.10"},
	})
	require.NoError(t, err)
	return result
}

func TestAuthService_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates a USER with a normalised email", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)

		user := env.register(t, "  Alice@Example.COM ")

		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, application.RoleUser, user.Role)
		assert.NotEmpty(t, user.ID)

		stored, err := env.harness.Repos.Users.GetUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)
		assert.NoError(t, application.VerifyPassword(stored.PasswordHash, "s3cret-pass"))
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		env.register(t, "bob@example.com")

		_, err := env.svc.Register(context.Background(), application.RegisterParams{
			Email:    "BOB@example.com",
			Password: "another-pass",
			Name:     "Bob Again",
		})

		var cErr *application.ConflictError
		require.ErrorAs(t, err, &cErr)
		assert.Equal(t, application.CodeEmailTaken, cErr.Code)
		assert.ErrorIs(t, err, application.ErrConflict)
	})

	t.Run("validates every field", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)

		_, err := env.svc.Register(context.Background(), application.RegisterParams{
			Email:    "not-an-email",
			Password: "short",
			Name:     "x",
		})

		var vErr *application.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "email")
		assert.Contains(t, vErr.FieldErrors, "password")
		assert.Contains(t, vErr.FieldErrors, "name")
	})

	t.Run("rejects passwords bcrypt would truncate", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)

		long := make([]byte, application.MaxPasswordLength+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := env.svc.Register(context.Background(), application.RegisterParams{
			Email:    "long@example.com",
			Password: string(long),
			Name:     "Long Password",
		})

		var vErr *application.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "password")
	})
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	t.Run("issues tokens and stores only the refresh digest", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		user := env.register(t, "carol@example.com")

		result := env.login(t, "carol@example.com")

		assert.Equal(t, user.ID, result.User.ID)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.True(t, result.RefreshExpiresAt.After(result.AccessExpiresAt))

		now := env.factory.Clock.Now()
		session, err := env.harness.Repos.Sessions.FindActiveSession(context.Background(), auth.HashToken(result.RefreshToken), now)
		require.NoError(t, err)
		assert.Equal(t, user.ID, session.UserID)
		assert.Equal(t, "go-test", session.UserAgent)
		assert.Equal(t, "192.0.2.10", session.IPAddress)
		assert.NotEqual(t, result.RefreshToken, session.TokenHash)
	})

	t.Run("user agent is cut on a character boundary", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		env.register(t, "cora@example.com")

		agents := map[string]string{
			strings.Repeat("a", 511) + "é" + strings.Repeat("b", 10): strings.Repeat("a", 511),
			"bad\xffagent": "badagent",
		}
		for agent, want := range agents {
			result, err := env.svc.Login(context.Background(), application.LoginParams{
				Email:    "cora@example.com",
				Password: "s3cret-pass",
				Client:   application.ClientMeta{UserAgent: agent},
			})
			require.NoError(t, err)

			session, err := env.harness.Repos.Sessions.FindActiveSession(context.Background(), auth.HashToken(result.RefreshToken), env.factory.Clock.Now())
			require.NoError(t, err)
			assert.True(t, utf8.ValidString(session.UserAgent))
			assert.LessOrEqual(t, len(session.UserAgent), 512)
			assert.Equal(t, want, session.UserAgent)
		}
	})

	t.Run("wrong password and unknown email fail the same way", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		env.register(t, "dave@example.com")

		_, wrongPassword := env.svc.Login(context.Background(), application.LoginParams{Email: "dave@example.com", Password: "nope-nope"})
		_, unknownEmail := env.svc.Login(context.Background(), application.LoginParams{Email: "nobody@example.com", Password: "s3cret-pass"})
		_, empty := env.svc.Login(context.Background(), application.LoginParams{})

		for _, err := range []error{wrongPassword, unknownEmail, empty} {
			assert.ErrorIs(t, err, application.ErrInvalidCredentials)
			assert.ErrorIs(t, err, application.ErrUnauthorized)
			assert.Equal(t, wrongPassword.Error(), err.Error())
		}
	})

	t.Run("purges expired sessions", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		user := env.register(t, "erin@example.com")

		now := env.factory.Clock.Now()
		stale := persistence.Session{
			ID:        "stale",
			UserID:    user.ID,
			TokenHash: auth.HashToken("stale-token"),
			ExpiresAt: now.Add(-time.Minute),
			CreatedAt: now.Add(-time.Hour),
		}
		require.NoError(t, env.harness.Repos.Sessions.CreateSession(context.Background(), stale))

		env.login(t, "erin@example.com")

		removed, err := env.harness.Repos.Sessions.DeleteSessionsByTokenHash(context.Background(), stale.TokenHash)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("rotates the refresh token", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		env.register(t, "frank@example.com")
		first := env.login(t, "frank@example.com")

		second, err := env.svc.Refresh(context.Background(), first.RefreshToken, application.ClientMeta{UserAgent: "renewed"})
		require.NoError(t, err)
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
		assert.Equal(t, first.User.ID, second.User.ID)

		_, err = env.svc.Refresh(context.Background(), first.RefreshToken, application.ClientMeta{})
		assert.ErrorIs(t, err, application.ErrUnauthorized)

		_, err = env.svc.Refresh(context.Background(), second.RefreshToken, application.ClientMeta{})
		assert.NoError(t, err)
	})

	t.Run("only one concurrent refresh wins", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		env.register(t, "grace@example.com")
		login := env.login(t, "grace@example.com")

		const attempts = 4
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			failures  []error
		)
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.svc.Refresh(context.Background(), login.RefreshToken, application.ClientMeta{})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
					return
				}
				failures = append(failures, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		for _, err := range failures {
			assert.ErrorIs(t, err, application.ErrUnauthorized)
		}
	})

	t.Run("rejects access tokens and garbage", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		env.register(t, "heidi@example.com")
		login := env.login(t, "heidi@example.com")

		_, err := env.svc.Refresh(context.Background(), login.AccessToken, application.ClientMeta{})
		assert.ErrorIs(t, err, application.ErrUnauthorized)

		_, err = env.svc.Refresh(context.Background(), "not.a.jwt", application.ClientMeta{})
		assert.ErrorIs(t, err, application.ErrUnauthorized)

		_, err = env.svc.Refresh(context.Background(), "", application.ClientMeta{})
		assert.ErrorIs(t, err, application.ErrUnauthorized)
	})

	t.Run("rejects expired refresh tokens", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		env.register(t, "ivan@example.com")
		login := env.login(t, "ivan@example.com")

		env.factory.Clock.Advance(15 * 24 * time.Hour)

		_, err := env.svc.Refresh(context.Background(), login.RefreshToken, application.ClientMeta{})
		assert.ErrorIs(t, err, application.ErrUnauthorized)
	})

	t.Run("picks up role changes", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		user := env.register(t, "judy@example.com")
		login := env.login(t, "judy@example.com")

		require.NoError(t, env.harness.Repos.Users.UpdateUserRole(context.Background(), user.ID, application.RoleAdmin, env.factory.Clock.Now()))

		refreshed, err := env.svc.Refresh(context.Background(), login.RefreshToken, application.ClientMeta{})
		require.NoError(t, err)

		principal, err := env.svc.VerifyAccessToken(refreshed.AccessToken)
		require.NoError(t, err)
		assert.True(t, principal.IsAdmin())
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	t.Run("logout revokes one session", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		env.register(t, "ken@example.com")
		a := env.login(t, "ken@example.com")
		b := env.login(t, "ken@example.com")

		require.NoError(t, env.svc.Logout(context.Background(), a.RefreshToken))
		require.NoError(t, env.svc.Logout(context.Background(), a.RefreshToken))
		require.NoError(t, env.svc.Logout(context.Background(), ""))

		_, err := env.svc.Refresh(context.Background(), a.RefreshToken, application.ClientMeta{})
		assert.ErrorIs(t, err, application.ErrUnauthorized)
		_, err = env.svc.Refresh(context.Background(), b.RefreshToken, application.ClientMeta{})
		assert.NoError(t, err)
	})

	t.Run("logout-all revokes every session", func(t *testing.T) {
		t.Parallel()
		env := newAuthEnv(t)
		user := env.register(t, "leo@example.com")
		a := env.login(t, "leo@example.com")
		b := env.login(t, "leo@example.com")

		removed, err := env.svc.LogoutAll(context.Background(), application.Principal{UserID: user.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		for _, token := range []string{a.RefreshToken, b.RefreshToken} {
			_, err := env.svc.Refresh(context.Background(), token, application.ClientMeta{})
			assert.ErrorIs(t, err, application.ErrUnauthorized)
		}

		_, err = env.svc.LogoutAll(context.Background(), application.Principal{})
		assert.ErrorIs(t, err, application.ErrUnauthorized)
	})
}

func TestAuthService_VerifyAccessToken(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	user := env.register(t, "mallory@example.com")
	login := env.login(t, "mallory@example.com")

	principal, err := env.svc.VerifyAccessToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, application.Principal{UserID: user.ID, Email: user.Email, Role: application.RoleUser}, principal)

	_, err = env.svc.VerifyAccessToken(login.RefreshToken)
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	env.factory.Clock.Advance(16 * time.Minute)
	_, err = env.svc.VerifyAccessToken(login.AccessToken)
	assert.ErrorIs(t, err, application.ErrUnauthorized)
}

func TestAuthService_CurrentUser(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	user := env.register(t, "nina@example.com")

	got, err := env.svc.CurrentUser(context.Background(), application.Principal{UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = env.svc.CurrentUser(context.Background(), application.Principal{UserID: "ghost"})
	assert.True(t, errors.Is(err, application.ErrNotFound))
}

func TestAuthService_PurgeExpiredSessions(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	env.register(t, "oscar@example.com")
	env.login(t, "oscar@example.com")
	env.login(t, "oscar@example.com")

	removed, err := env.svc.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)

	env.factory.Clock.Advance(14*24*time.Hour + time.Second)
	removed, err = env.svc.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestAuthService_NilReceiver(t *testing.T) {
	t.Parallel()
	var svc *application.AuthService

	_, err := svc.Register(context.Background(), application.RegisterParams{})
	assert.Error(t, err)
	_, err = svc.VerifyAccessToken("x")
	assert.Error(t, err)
}
