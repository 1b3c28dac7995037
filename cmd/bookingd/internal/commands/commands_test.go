package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/persistence"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "booking.db")
	t.Setenv("BOOKING_STORAGE_DRIVER", config.DriverSQLite)
	t.Setenv("BOOKING_STORAGE_SQLITE_DSN", dsn)
	t.Setenv("BOOKING_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	return dsn
}

func TestMigrateAndCreateAdmin(t *testing.T) {
	setupEnv(t)
	ctx := context.Background()
	globals := &Globals{Version: "test"}

	require.NoError(t, (&MigrateCmd{}).Run(ctx, globals))

	create := &CreateAdminCmd{Email: "Root@Example.com", Password: "correct-horse", Name: "Root"}
	require.NoError(t, create.Run(ctx, globals))
	// A second run promotes the existing account instead of failing.
	require.NoError(t, create.Run(ctx, globals))

	var logs bytes.Buffer
	rt, err := loadRuntime(ctx, globals, &logs)
	require.NoError(t, err)
	defer rt.Close()

	user, err := rt.store.Repositories().Users.GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, persistence.RoleAdmin, user.Role)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	require.NoError(t, (&PurgeSessionsCmd{}).Run(ctx, globals))
}

func TestLoadRuntimeRejectsBadConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("BOOKING_AUTH_JWT_SECRET", "")

	_, err := loadRuntime(context.Background(), &Globals{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}

func TestOpenStoreUnsupportedDriver(t *testing.T) {
	_, err := openStore(context.Background(), config.StorageConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

type fakeStore struct{ persistence.Store }

func TestMigrateUnknownStore(t *testing.T) {
	err := migrate(context.Background(), fakeStore{})
	require.Error(t, err)
}

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (c *countingPurger) PurgeExpiredSessions(context.Context) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestPurgeLoopRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	purger := &countingPurger{err: errors.New("transient")}

	done := make(chan struct{})
	go func() {
		purgeLoop(ctx, purger, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return purger.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purge loop did not stop after cancellation")
	}
}

func TestConfigureHTTPServer(t *testing.T) {
	srv := configureHTTPServer(http.NotFoundHandler(), config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 4 * time.Second,
	})
	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
	assert.Equal(t, 3*time.Second, srv.ReadTimeout)
	assert.Equal(t, 4*time.Second, srv.WriteTimeout)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}
