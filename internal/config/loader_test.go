package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOOKING_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, ":3001", cfg.Server.Addr())
	assert.Equal(t, EnvDevelopment, cfg.Server.Environment)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Server.TrustProxyHeaders)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, time.UTC, cfg.Booking.Location)
	assert.Equal(t, 15*time.Minute, cfg.Booking.MinDuration)
	assert.Equal(t, 8*time.Hour, cfg.Booking.MaxDuration)
	assert.Equal(t, 30*time.Second, cfg.Cache.DayViewTTL)
	assert.Equal(t, 20, cfg.RateLimit.AuthPerMinute)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BOOKING_AUTH_JWT_SECRET", testSecret)
	t.Setenv("BOOKING_SERVER_PORT", "8088")
	t.Setenv("BOOKING_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("BOOKING_AUTH_ACCESS_EXPIRES_IN", "30m")
	t.Setenv("BOOKING_AUTH_REFRESH_EXPIRES_IN", "7d")
	t.Setenv("BOOKING_BOOKING_TIMEZONE", "Asia/Tokyo")
	t.Setenv("BOOKING_BOOKING_MAX_DURATION", "4h")
	t.Setenv("BOOKING_STORAGE_DRIVER", "postgres")
	t.Setenv("BOOKING_STORAGE_POSTGRES_CONN_STRING", "postgres://booking@localhost/booking")
	t.Setenv("BOOKING_STORAGE_POSTGRES_MAX_CONNS", "12")
	t.Setenv("BOOKING_SERVER_TRUST_PROXY_HEADERS", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "Asia/Tokyo", cfg.Booking.Location.String())
	assert.Equal(t, 4*time.Hour, cfg.Booking.MaxDuration)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, int32(12), cfg.Storage.Postgres.MaxConns)
	assert.True(t, cfg.Server.TrustProxyHeaders)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "booking.yaml")
	content := []byte(`
server:
  port: 9000
  environment: production
auth:
  jwt_secret: "` + testSecret + `"
  cookie_secure: true
cache:
  redis_addr: "localhost:6379"
log:
  format: json
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("BOOKING_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "environment wins over the file")
	assert.True(t, cfg.Server.IsProduction())
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("BOOKING_AUTH_JWT_SECRET", testSecret)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	t.Setenv("BOOKING_AUTH_JWT_SECRET", "")
	t.Setenv("BOOKING_SERVER_PORT", "70000")
	t.Setenv("BOOKING_AUTH_ACCESS_EXPIRES_IN", "15 minutes")
	t.Setenv("BOOKING_BOOKING_TIMEZONE", "Mars/Olympus")
	t.Setenv("BOOKING_STORAGE_DRIVER", "mysql")
	t.Setenv("BOOKING_LOG_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "missing required configuration: auth.jwt_secret")
	for _, key := range []string{
		"server.port",
		"auth.access_expires_in",
		"booking.timezone",
		"storage.driver",
		"log.level",
	} {
		assert.Contains(t, msg, key)
	}
}

func TestLoad_ProductionRequiresStrongSecret(t *testing.T) {
	t.Setenv("BOOKING_SERVER_ENVIRONMENT", EnvProduction)
	t.Setenv("BOOKING_AUTH_JWT_SECRET", "short-secret")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration: auth.jwt_secret")

	t.Setenv("BOOKING_SERVER_ENVIRONMENT", EnvDevelopment)
	_, err = Load("")
	require.NoError(t, err)
}

func TestLoad_RejectsInvertedDurations(t *testing.T) {
	t.Setenv("BOOKING_AUTH_JWT_SECRET", testSecret)
	t.Setenv("BOOKING_BOOKING_MIN_DURATION", "2h")
	t.Setenv("BOOKING_BOOKING_MAX_DURATION", "1h")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking.max_duration")
}
