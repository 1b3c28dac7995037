package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/room-booking/internal/application"
)

type authService interface {
	Register(ctx context.Context, params application.RegisterParams) (application.User, error)
	Login(ctx context.Context, params application.LoginParams) (application.AuthResult, error)
	Refresh(ctx context.Context, rawRefresh string, client application.ClientMeta) (application.AuthResult, error)
	Logout(ctx context.Context, rawRefresh string) error
	LogoutAll(ctx context.Context, principal application.Principal) (int64, error)
}

// CookieConfig controls the attributes of the token cookies.
type CookieConfig struct {
	Domain string
	Secure bool
	// RefreshPath scopes the refresh cookie. Defaults to /api/v1/auth.
	RefreshPath string
}

type AuthHandler struct {
	service   authService
	cookies   CookieConfig
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	if cookies.RefreshPath == "" {
		cookies.RefreshPath = apiPrefix + "/auth"
	}
	return &AuthHandler{service: service, cookies: cookies, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=2,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        userDTO   `json:"user"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := h.service.Register(ctx, application.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.log(ctx, "Register").WarnContext(ctx, "registration rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusCreated, toUserDTO(user))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	result, err := h.service.Login(ctx, application.LoginParams{
		Email:    req.Email,
		Password: req.Password,
		Client:   clientMeta(r),
	})
	if err != nil {
		h.log(ctx, "Login").WarnContext(ctx, "login rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.setTokenCookies(w, result)
	h.responder.writeData(ctx, w, http.StatusOK, toTokenResponse(result))
}

// Refresh handles POST /auth/refresh. The refresh token is read from its
// cookie and rotated on success.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		h.responder.writeError(ctx, w, http.StatusUnauthorized, CodeUnauthorized, "refresh token missing")
		return
	}

	result, err := h.service.Refresh(ctx, raw, clientMeta(r))
	if err != nil {
		h.log(ctx, "Refresh").WarnContext(ctx, "refresh rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.clearTokenCookies(w)
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.setTokenCookies(w, result)
	h.responder.writeData(ctx, w, http.StatusOK, toTokenResponse(result))
}

// Logout handles POST /auth/logout. A missing or unknown cookie still succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		raw = cookie.Value
	}

	if err := h.service.Logout(ctx, raw); err != nil {
		h.log(ctx, "Logout").ErrorContext(ctx, "logout failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.clearTokenCookies(w)
	h.responder.writeData(ctx, w, http.StatusOK, map[string]string{"message": "logged out"})
}

// LogoutAll handles POST /auth/logout-all.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := principalOrAnonymous(ctx)

	removed, err := h.service.LogoutAll(ctx, principal)
	if err != nil {
		h.log(ctx, "LogoutAll").ErrorContext(ctx, "logout-all failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.clearTokenCookies(w)
	h.responder.writeData(ctx, w, http.StatusOK, map[string]int64{"revokedSessions": removed})
}

func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, result application.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    result.AccessToken,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  result.AccessExpiresAt.UTC(),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    result.RefreshToken,
		Path:     h.cookies.RefreshPath,
		Domain:   h.cookies.Domain,
		Expires:  result.RefreshExpiresAt.UTC(),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{accessCookieName, "/"},
		{refreshCookieName, h.cookies.RefreshPath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Domain:   h.cookies.Domain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookies.Secure,
		})
	}
}

func toTokenResponse(result application.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken: result.AccessToken,
		ExpiresAt:   result.AccessExpiresAt.UTC(),
		User:        toUserDTO(result.User),
	}
}

func clientMeta(r *http.Request) application.ClientMeta {
	ip := ClientIPFromContext(r.Context())
	if ip == "" {
		ip = clientIP(r, false)
	}
	return application.ClientMeta{UserAgent: r.UserAgent(), IPAddress: ip}
}
