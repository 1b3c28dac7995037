package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/metrics"
	"github.com/example/room-booking/internal/persistence"
)

// TokenIssuer mints and verifies access and refresh tokens.
type TokenIssuer interface {
	IssuePair(subject auth.Subject) (auth.Pair, error)
	VerifyAccess(token string) (auth.Claims, error)
	VerifyRefresh(token string) (auth.Claims, error)
}

// AuthService coordinates registration, login, and refresh-token rotation.
type AuthService struct {
	store          persistence.Store
	tokens         TokenIssuer
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(store persistence.Store, tokens TokenIssuer, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(store, tokens, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(store persistence.Store, tokens TokenIssuer, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		store:          store,
		tokens:         tokens,
		hashPassword:   CreatePasswordHash,
		verifyPassword: VerifyPassword,
		idGenerator:    idGenerator,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

// WithPasswordFuncs replaces the password hasher and verifier. Tests use it
// to avoid the full bcrypt cost.
func (s *AuthService) WithPasswordFuncs(hash PasswordHasher, verify PasswordVerifier) *AuthService {
	if hash != nil {
		s.hashPassword = hash
	}
	if verify != nil {
		s.verifyPassword = verify
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) ready() error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.store == nil || s.tokens == nil {
		return fmt.Errorf("auth service not configured")
	}
	return nil
}

// Register creates a USER account.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Register", "email", email)
	defer func() {
		metrics.AuthEvents.WithLabelValues("register", metrics.Outcome(err, ErrorKind(err))).Inc()
		logOutcome(ctx, logger, err, "registration failed", "user registered", "user_id", user.ID)
	}()

	name := strings.TrimSpace(params.Name)
	if vErr := validateRegistration(email, params.Password, name); vErr.HasErrors() {
		err = vErr
		return
	}

	repos := s.store.Repositories()
	if _, lookupErr := repos.Users.GetUserByEmail(ctx, email); lookupErr == nil {
		err = newConflict(CodeEmailTaken, "email is already registered")
		return
	} else if !errors.Is(lookupErr, persistence.ErrNotFound) {
		err = fmt.Errorf("lookup user: %w", lookupErr)
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		return
	}

	now := s.now().UTC()
	record := persistence.User{
		ID:           s.idGenerator(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = repos.Users.CreateUser(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = newConflict(CodeEmailTaken, "email is already registered")
			return
		}
		err = fmt.Errorf("create user: %w", err)
		return
	}

	user = toUser(record)
	return
}

// Login verifies credentials and opens a new refresh session. Every failure
// is reported as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		metrics.AuthEvents.WithLabelValues("login", metrics.Outcome(err, ErrorKind(err))).Inc()
		logOutcome(ctx, logger, err, "login failed", "login succeeded", "user_id", result.User.ID)
	}()

	now := s.now().UTC()
	repos := s.store.Repositories()
	if _, purgeErr := repos.Sessions.DeleteExpiredSessions(ctx, now); purgeErr != nil {
		logger.WarnContext(ctx, "failed to purge expired sessions", "error", purgeErr)
	}

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	record, lookupErr := repos.Users.GetUserByEmail(ctx, email)
	if lookupErr != nil {
		if !errors.Is(lookupErr, persistence.ErrNotFound) {
			err = fmt.Errorf("lookup user: %w", lookupErr)
			return
		}
		_ = s.verifyPassword(dummyHash(), params.Password)
		err = ErrInvalidCredentials
		return
	}

	if verifyErr := s.verifyPassword(record.PasswordHash, params.Password); verifyErr != nil {
		err = ErrInvalidCredentials
		return
	}

	var pair auth.Pair
	pair, err = s.tokens.IssuePair(subjectOf(record))
	if err != nil {
		err = fmt.Errorf("issue tokens: %w", err)
		return
	}

	session := s.newSession(record.ID, pair.Refresh, params.Client, now)
	if err = repos.Sessions.CreateSession(ctx, session); err != nil {
		err = fmt.Errorf("create session: %w", err)
		return
	}

	result = authResult(record, pair)
	return
}

// Refresh rotates a refresh token. The presented session is deleted and a new
// one is stored in the same transaction, so a refresh token works only once.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string, client ClientMeta) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Refresh", "token_provided", rawRefresh != "")
	defer func() {
		metrics.AuthEvents.WithLabelValues("refresh", metrics.Outcome(err, ErrorKind(err))).Inc()
		logOutcome(ctx, logger, err, "refresh failed", "session refreshed", "user_id", result.User.ID)
	}()

	claims, verifyErr := s.tokens.VerifyRefresh(strings.TrimSpace(rawRefresh))
	if verifyErr != nil {
		err = fmt.Errorf("%w: %v", ErrUnauthorized, verifyErr)
		return
	}

	now := s.now().UTC()
	hash := auth.HashToken(strings.TrimSpace(rawRefresh))

	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		session, err := repos.Sessions.FindActiveSession(ctx, hash, now)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("%w: session not found", ErrUnauthorized)
			}
			return fmt.Errorf("find session: %w", err)
		}
		if session.UserID != claims.Subject {
			return fmt.Errorf("%w: session subject mismatch", ErrUnauthorized)
		}

		record, err := repos.Users.GetUser(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
			}
			return fmt.Errorf("load user: %w", err)
		}

		if err := repos.Sessions.DeleteSession(ctx, session.ID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("%w: session already used", ErrUnauthorized)
			}
			return fmt.Errorf("delete session: %w", err)
		}

		pair, err := s.tokens.IssuePair(subjectOf(record))
		if err != nil {
			return fmt.Errorf("issue tokens: %w", err)
		}
		if err := repos.Sessions.CreateSession(ctx, s.newSession(record.ID, pair.Refresh, client, now)); err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		result = authResult(record, pair)
		return nil
	})
	if err != nil {
		result = AuthResult{}
	}
	return
}

// Logout deletes the session behind rawRefresh. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	token := strings.TrimSpace(rawRefresh)
	logger := s.loggerWith(ctx, "Logout", "token_provided", token != "")
	var removed int64
	defer func() {
		logOutcome(ctx, logger, err, "logout failed", "logged out", "sessions_removed", removed)
	}()

	if token == "" {
		return
	}
	removed, err = s.store.Repositories().Sessions.DeleteSessionsByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		err = fmt.Errorf("delete session: %w", err)
	}
	return
}

// LogoutAll deletes every session of the principal.
func (s *AuthService) LogoutAll(ctx context.Context, principal Principal) (removed int64, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "LogoutAll", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "logout-all failed", "logged out everywhere", "sessions_removed", removed)
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	removed, err = s.store.Repositories().Sessions.DeleteSessionsByUser(ctx, principal.UserID)
	if err != nil {
		err = fmt.Errorf("delete sessions: %w", err)
	}
	return
}

// VerifyAccessToken checks an access token without touching storage.
func (s *AuthService) VerifyAccessToken(token string) (Principal, error) {
	if s == nil || s.tokens == nil {
		return Principal{}, fmt.Errorf("auth service not configured")
	}
	claims, err := s.tokens.VerifyAccess(strings.TrimSpace(token))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return Principal{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// CurrentUser returns the account behind principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal Principal) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	record, err := s.store.Repositories().Users.GetUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return toUser(record), nil
}

// PurgeExpiredSessions deletes sessions that expired at or before now.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (removed int64, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "PurgeExpiredSessions")
	removed, err = s.store.Repositories().Sessions.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		err = fmt.Errorf("purge sessions: %w", err)
		logger.ErrorContext(ctx, "failed to purge sessions", "error", err, "error_kind", ErrorKind(err))
		return
	}
	metrics.SessionsPurged.Add(float64(removed))
	logger.DebugContext(ctx, "expired sessions purged", "sessions_removed", removed)
	return
}

func (s *AuthService) newSession(userID string, refresh auth.IssuedToken, client ClientMeta, now time.Time) persistence.Session {
	return persistence.Session{
		ID:        s.idGenerator(),
		UserID:    userID,
		TokenHash: auth.HashToken(refresh.Token),
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: truncate(client.UserAgent, 512),
		IPAddress: client.IPAddress,
		CreatedAt: now,
	}
}

func subjectOf(u persistence.User) auth.Subject {
	return auth.Subject{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func authResult(u persistence.User, pair auth.Pair) AuthResult {
	return AuthResult{
		User:             toUser(u),
		AccessToken:      pair.Access.Token,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:     pair.Refresh.Token,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func validateRegistration(email, password, name string) *ValidationError {
	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		vErr.add("email", "email must be a valid address")
	}
	switch {
	case len(password) < MinPasswordLength:
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	case len(password) > MaxPasswordLength:
		vErr.add("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength))
	}
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		vErr.add("name", "name must be between 2 and 50 characters")
	}
	return vErr
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// truncate drops invalid UTF-8 and cuts s to at most max bytes without
// splitting a character.
func truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
