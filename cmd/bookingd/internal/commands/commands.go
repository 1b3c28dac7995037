// Package commands implements the bookingd subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/cache"
	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/ids"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/postgres"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

// Globals carries flags shared by every command.
type Globals struct {
	ConfigFile string
	Version    string
}

// runtime bundles the dependencies a command builds from configuration.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	store  persistence.Store
	ids    *ids.Generator
	now    func() time.Time
}

func loadRuntime(ctx context.Context, globals *Globals, logOut io.Writer) (*runtime, error) {
	cfg, err := config.Load(globals.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if logOut == nil {
		logOut = os.Stderr
	}
	logger, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	logger = logger.With("version", globals.Version)

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		ids:    ids.NewGenerator(time.Now),
		now:    time.Now,
	}, nil
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("failed to close storage", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (persistence.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, postgres.PoolConfig{
			ConnString:        cfg.Postgres.ConnString,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ConnectTimeout:    cfg.Postgres.ConnectTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// migrate applies the schema for whichever backend store is.
func migrate(ctx context.Context, store persistence.Store) error {
	switch s := store.(type) {
	case *sqlite.Store:
		return s.Migrate(ctx)
	case *postgres.Store:
		return s.Migrate()
	default:
		return errors.New("store does not support migrations")
	}
}

func (rt *runtime) newIssuer() (*auth.Issuer, error) {
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret:     []byte(rt.cfg.Auth.JWTSecret),
		Issuer:     rt.cfg.Auth.JWTIssuer,
		AccessTTL:  rt.cfg.Auth.AccessTTL,
		RefreshTTL: rt.cfg.Auth.RefreshTTL,
	}, rt.now)
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}
	return issuer, nil
}

func (rt *runtime) newAuthService() (*application.AuthService, error) {
	issuer, err := rt.newIssuer()
	if err != nil {
		return nil, err
	}
	return application.NewAuthServiceWithLogger(rt.store, issuer, rt.ids.Next, rt.now, rt.logger), nil
}

// newCache returns the Redis store when configured and the in-process store
// otherwise. The returned closer is never nil.
func (rt *runtime) newCache(ctx context.Context) (cache.Store, func(), error) {
	if rt.cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryStore(rt.cfg.Cache.MaxEntries, rt.now), func() {}, nil
	}
	store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:     rt.cfg.Cache.RedisAddr,
		Password: rt.cfg.Cache.RedisPassword,
		DB:       rt.cfg.Cache.RedisDB,
		Prefix:   rt.cfg.Cache.RedisPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			rt.logger.Error("failed to close redis", "error", err)
		}
	}, nil
}
