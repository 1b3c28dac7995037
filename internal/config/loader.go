// Package config loads service configuration from an optional YAML file and
// BOOKING_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/logging"
)

// EnvPrefix prefixes every environment variable the loader reads, e.g.
// BOOKING_AUTH_JWT_SECRET for auth.jwt_secret.
const EnvPrefix = "BOOKING"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const minProductionSecret = 32

// Config captures configuration values for the booking service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	Environment       string        `mapstructure:"environment"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Leave it off unless a reverse proxy sets those headers.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the service runs in production mode.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Driver    string         `mapstructure:"driver"`
	SQLiteDSN string         `mapstructure:"sqlite_dsn"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL pool settings. Zero values fall back to
// the pool defaults.
type PostgresConfig struct {
	ConnString        string        `mapstructure:"conn_string"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

// AuthConfig holds token and cookie settings. The expiry strings use the
// <integer><s|m|h|d> form and are parsed into AccessTTL and RefreshTTL.
type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	JWTIssuer        string `mapstructure:"jwt_issuer"`
	AccessExpiresIn  string `mapstructure:"access_expires_in"`
	RefreshExpiresIn string `mapstructure:"refresh_expires_in"`
	CookieDomain     string `mapstructure:"cookie_domain"`
	CookieSecure     bool   `mapstructure:"cookie_secure"`

	AccessTTL  time.Duration `mapstructure:"-"`
	RefreshTTL time.Duration `mapstructure:"-"`
}

// BookingConfig holds booking policy settings.
type BookingConfig struct {
	Timezone    string        `mapstructure:"timezone"`
	MinDuration time.Duration `mapstructure:"min_duration"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	MaxAdvance  time.Duration `mapstructure:"max_advance"`

	Location *time.Location `mapstructure:"-"`
}

// CacheConfig configures the day view cache and rate limiter storage. An
// empty RedisAddr selects the in-process store.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
	DayViewTTL    time.Duration `mapstructure:"day_view_ttl"`
	MaxEntries    int           `mapstructure:"max_entries"`
}

// RateLimitConfig bounds unauthenticated auth requests per client IP.
// Zero disables the limiter.
type RateLimitConfig struct {
	AuthPerMinute int `mapstructure:"auth_per_minute"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, or ./config.yaml when path is empty,
// then applies environment overrides. A missing default file is not an error.
// Every missing or invalid key is reported in a single error.
func Load(path string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.trust_proxy_headers", false)

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_dsn", "booking.db")
	v.SetDefault("storage.postgres.conn_string", "")
	v.SetDefault("storage.postgres.max_conns", 0)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.postgres.max_conn_lifetime", "0s")
	v.SetDefault("storage.postgres.max_conn_idle_time", "0s")
	v.SetDefault("storage.postgres.health_check_period", "0s")
	v.SetDefault("storage.postgres.connect_timeout", "0s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "room-booking")
	v.SetDefault("auth.access_expires_in", "15m")
	v.SetDefault("auth.refresh_expires_in", "14d")
	v.SetDefault("auth.cookie_domain", "")
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("booking.timezone", "UTC")
	v.SetDefault("booking.min_duration", "15m")
	v.SetDefault("booking.max_duration", "8h")
	v.SetDefault("booking.max_advance", "720h")

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "booking:")
	v.SetDefault("cache.day_view_ttl", "30s")
	v.SetDefault("cache.max_entries", 10000)

	v.SetDefault("ratelimit.auth_per_minute", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// finalize validates the decoded values and fills the derived fields.
func (c *Config) finalize() error {
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		invalid = append(invalid, "server.port")
	}
	switch c.Server.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		invalid = append(invalid, "server.environment")
	}
	if c.Server.ReadTimeout <= 0 {
		invalid = append(invalid, "server.read_timeout")
	}
	if c.Server.WriteTimeout <= 0 {
		invalid = append(invalid, "server.write_timeout")
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLiteDSN) == "" {
			missing = append(missing, "storage.sqlite_dsn")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.Postgres.ConnString) == "" {
			missing = append(missing, "storage.postgres.conn_string")
		}
	default:
		invalid = append(invalid, "storage.driver")
	}

	secret := strings.TrimSpace(c.Auth.JWTSecret)
	switch {
	case secret == "":
		missing = append(missing, "auth.jwt_secret")
	case c.Server.IsProduction() && len(secret) < minProductionSecret:
		invalid = append(invalid, "auth.jwt_secret")
	default:
		c.Auth.JWTSecret = secret
	}

	if ttl, err := auth.ParseExpiry(c.Auth.AccessExpiresIn); err != nil {
		invalid = append(invalid, "auth.access_expires_in")
	} else {
		c.Auth.AccessTTL = ttl
	}
	if ttl, err := auth.ParseExpiry(c.Auth.RefreshExpiresIn); err != nil {
		invalid = append(invalid, "auth.refresh_expires_in")
	} else {
		c.Auth.RefreshTTL = ttl
	}

	if loc, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		invalid = append(invalid, "booking.timezone")
	} else {
		c.Booking.Location = loc
	}
	if c.Booking.MinDuration < 0 {
		invalid = append(invalid, "booking.min_duration")
	}
	if c.Booking.MaxDuration < 0 || (c.Booking.MaxDuration > 0 && c.Booking.MaxDuration < c.Booking.MinDuration) {
		invalid = append(invalid, "booking.max_duration")
	}
	if c.Booking.MaxAdvance < 0 {
		invalid = append(invalid, "booking.max_advance")
	}

	if c.Cache.DayViewTTL <= 0 {
		invalid = append(invalid, "cache.day_view_ttl")
	}
	if c.RateLimit.AuthPerMinute < 0 {
		invalid = append(invalid, "ratelimit.auth_per_minute")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid = append(invalid, "log.level")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		invalid = append(invalid, "log.format")
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required configuration: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid configuration: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
