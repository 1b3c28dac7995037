package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

// AuditService exposes the append-only audit trail to administrators.
type AuditService struct {
	store  persistence.Store
	logger *slog.Logger
}

// NewAuditService constructs an audit service.
func NewAuditService(store persistence.Store, logger *slog.Logger) *AuditService {
	return &AuditService{store: store, logger: defaultLogger(logger)}
}

// ListAudit returns a page of audit entries, newest first.
func (s *AuditService) ListAudit(ctx context.Context, params ListAuditParams) (page AuditPage, err error) {
	if s == nil {
		err = fmt.Errorf("AuditService is nil")
		return
	}
	if !params.Principal.IsAdmin() {
		err = ErrForbidden
		serviceLogger(ctx, s.logger, "AuditService", "ListAudit", "principal_id", params.Principal.UserID).
			WarnContext(ctx, "audit access denied", "error_kind", ErrorKind(err))
		return
	}

	entityType := strings.TrimSpace(params.EntityType)
	switch entityType {
	case "", persistence.EntityBooking, persistence.EntityRoom:
	default:
		err = NewValidationError("entityType", "entityType must be Booking or Room")
		return
	}

	pageNum, limit := normalizePage(params.Page, params.Limit)
	records, total, listErr := s.store.Repositories().Audit.ListAudit(ctx, persistence.AuditFilter{
		EntityType: entityType,
		EntityID:   strings.TrimSpace(params.EntityID),
		Offset:     (pageNum - 1) * limit,
		Limit:      limit,
	})
	if listErr != nil {
		err = fmt.Errorf("list audit: %w", listErr)
		return
	}

	page.Items = make([]AuditEntry, 0, len(records))
	for _, r := range records {
		page.Items = append(page.Items, toAuditEntry(r))
	}
	page.Meta = pageMeta(total, pageNum, limit)
	return
}
