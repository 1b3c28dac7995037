package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	api "github.com/example/room-booking/internal/http"
)

// ServeCmd runs the booking API until the context is cancelled.
type ServeCmd struct {
	AutoMigrate   bool          `help:"Apply migrations before serving." default:"true" negatable:""`
	PurgeInterval time.Duration `help:"How often expired sessions are deleted. Zero disables the sweep." default:"1h"`
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := loadRuntime(ctx, globals, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if s.AutoMigrate {
		if err := migrate(ctx, rt.store); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	store, closeCache, err := rt.newCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	authSvc, err := rt.newAuthService()
	if err != nil {
		return err
	}
	roomSvc := application.NewRoomServiceWithLogger(rt.store, rt.ids.Next, rt.now, logger)
	bookingSvc := application.NewBookingServiceWithLogger(rt.store, application.BookingServiceConfig{
		Policy: application.BookingPolicy{
			MinDuration: rt.cfg.Booking.MinDuration,
			MaxDuration: rt.cfg.Booking.MaxDuration,
			MaxAdvance:  rt.cfg.Booking.MaxAdvance,
		},
		Location:     rt.cfg.Booking.Location,
		DayViewCache: store,
		DayViewTTL:   rt.cfg.Cache.DayViewTTL,
	}, rt.ids.Next, rt.now, logger)
	auditSvc := application.NewAuditService(rt.store, logger)

	checks := map[string]api.Pinger{"database": rt.store}
	if rt.cfg.Cache.RedisAddr != "" {
		checks["cache"] = store
	}

	router := api.NewRouter(api.RouterConfig{
		Auth: api.NewAuthHandler(authSvc, api.CookieConfig{
			Domain: rt.cfg.Auth.CookieDomain,
			Secure: rt.cfg.Auth.CookieSecure || rt.cfg.Server.IsProduction(),
		}, logger),
		Users:             api.NewUserHandler(authSvc, logger),
		Rooms:             api.NewRoomHandler(roomSvc, logger),
		Bookings:          api.NewBookingHandler(bookingSvc, logger),
		Audit:             api.NewAuditHandler(auditSvc, logger),
		Health:            api.NewHealthHandler(checks, rt.now, logger),
		Verifier:          authSvc,
		RateLimitStore:    store,
		AuthRatePerMinute: rt.cfg.RateLimit.AuthPerMinute,
		CORSOrigins:       rt.cfg.Server.CORSOrigins,
		TrustProxyHeaders: rt.cfg.Server.TrustProxyHeaders,
		Logger:            logger,
	})

	srv := configureHTTPServer(router, rt.cfg.Server)

	if s.PurgeInterval > 0 {
		go purgeLoop(ctx, authSvc, s.PurgeInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("booking API listening", "addr", srv.Addr, "environment", rt.cfg.Server.Environment, "storage", rt.cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", rt.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func configureHTTPServer(handler http.Handler, cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

type sessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// purgeLoop sweeps expired sessions until ctx is done. Failures are logged by
// the service and retried on the next tick.
func purgeLoop(ctx context.Context, purger sessionPurger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = purger.PurgeExpiredSessions(ctx)
		}
	}
}
