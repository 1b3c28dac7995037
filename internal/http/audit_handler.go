package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/room-booking/internal/application"
)

type auditService interface {
	ListAudit(ctx context.Context, params application.ListAuditParams) (application.AuditPage, error)
}

type AuditHandler struct {
	service   auditService
	responder responder
	logger    *slog.Logger
}

func NewAuditHandler(service auditService, logger *slog.Logger) *AuditHandler {
	base := defaultLogger(logger)
	return &AuditHandler{service: service, responder: newResponder(base), logger: base}
}

// List handles GET /audit-logs.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := newQueryReader(r)
	params := application.ListAuditParams{
		Principal:  principalOrAnonymous(ctx),
		EntityType: q.String("entityType"),
		EntityID:   q.String("entityId"),
		Page:       q.Int("page"),
		Limit:      q.Int("limit"),
	}
	if err := q.Err(); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	page, err := h.service.ListAudit(ctx, params)
	if err != nil {
		handlerLogger(ctx, h.logger, "AuditHandler", "List").WarnContext(ctx, "failed to list audit entries", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writePage(ctx, w, toAuditEntryDTOs(page.Items), page.Meta)
}
