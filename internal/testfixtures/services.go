package testfixtures

import (
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/persistence"
)

// TokenSecret signs the tokens minted by factory-built auth services.
const TokenSecret = "test-secret-0123456789abcdef0123456789"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// FastPasswordHash hashes with the minimum bcrypt cost to keep tests quick.
func FastPasswordHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// NewIssuer builds a token issuer driven by the factory clock, with a
// 15 minute access and 14 day refresh lifetime.
func (f *ServiceFactory) NewIssuer() *auth.Issuer {
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret:     []byte(TokenSecret),
		Issuer:     "room-booking-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
	}, f.Clock.NowFunc())
	if err != nil {
		panic(err)
	}
	return issuer
}

// NewAuthService builds an auth service over store with fast password hashing.
func (f *ServiceFactory) NewAuthService(store persistence.Store) *application.AuthService {
	svc := application.NewAuthServiceWithLogger(store, f.NewIssuer(), f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
	return svc.WithPasswordFuncs(FastPasswordHash, application.VerifyPassword)
}

// NewBookingService builds a booking service over store.
func (f *ServiceFactory) NewBookingService(store persistence.Store, cfg application.BookingServiceConfig) *application.BookingService {
	return application.NewBookingServiceWithLogger(store, cfg, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewRoomService builds a room service over store.
func (f *ServiceFactory) NewRoomService(store persistence.Store) *application.RoomService {
	return application.NewRoomServiceWithLogger(store, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewAuditService builds an audit service over store.
func (f *ServiceFactory) NewAuditService(store persistence.Store) *application.AuditService {
	return application.NewAuditService(store, f.Logger)
}

// NewUserService builds a user administration service over store.
func (f *ServiceFactory) NewUserService(store persistence.Store) *application.UserService {
	return application.NewUserService(store, FastPasswordHash, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}
