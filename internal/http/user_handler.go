package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/room-booking/internal/application"
)

type userService interface {
	CurrentUser(ctx context.Context, principal application.Principal) (application.User, error)
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := principalOrAnonymous(ctx)

	user, err := h.service.CurrentUser(ctx, principal)
	if err != nil {
		handlerLogger(ctx, h.logger, "UserHandler", "Me").WarnContext(ctx, "failed to load current user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusOK, toUserDTO(user))
}
