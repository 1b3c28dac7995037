package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// EnsureAdminParams describes the administrator seeded from the command line.
// Password and Name are only used when the account does not exist yet.
type EnsureAdminParams struct {
	Email    string
	Password string
	Name     string
}

// UserService performs out-of-band account administration. It is not exposed
// over HTTP.
type UserService struct {
	store        persistence.Store
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(store persistence.Store, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = CreatePasswordHash
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{store: store, hashPassword: hash, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// EnsureAdmin promotes the account with the given email to ADMIN, creating it
// first when it does not exist. created reports whether a new account was made.
func (s *UserService) EnsureAdmin(ctx context.Context, params EnsureAdminParams) (user User, created bool, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	email := normalizeEmail(params.Email)
	logger := serviceLogger(ctx, s.logger, "UserService", "EnsureAdmin", "email", email)
	defer func() {
		logOutcome(ctx, logger, err, "failed to ensure administrator", "administrator ensured",
			"user_id", user.ID, "created", created)
	}()

	if s.store == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	now := s.now().UTC()
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		existing, err := repos.Users.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			if existing.Role != RoleAdmin {
				if err := repos.Users.UpdateUserRole(ctx, existing.ID, RoleAdmin, now); err != nil {
					return fmt.Errorf("promote user: %w", err)
				}
				existing.Role = RoleAdmin
				existing.UpdatedAt = now
			}
			user, created = toUser(existing), false
			return nil
		case !errors.Is(err, persistence.ErrNotFound):
			return fmt.Errorf("lookup user: %w", err)
		}

		name := strings.TrimSpace(params.Name)
		if name == "" {
			name = "Administrator"
		}
		if vErr := validateRegistration(email, params.Password, name); vErr.HasErrors() {
			return vErr
		}

		hash, err := s.hashPassword(params.Password)
		if err != nil {
			return err
		}
		record := persistence.User{
			ID:           s.idGenerator(),
			Email:        email,
			PasswordHash: hash,
			Name:         name,
			Role:         RoleAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repos.Users.CreateUser(ctx, record); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		user, created = toUser(record), true
		return nil
	})
	if err != nil {
		user, created = User{}, false
	}
	return
}
