package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository using PostgreSQL.
type AuditRepository struct {
	q querier
}

// AppendAudit inserts an audit entry.
func (r *AuditRepository) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	if entry.ID == "" || entry.Action == "" {
		return persistence.ErrConstraintViolation
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.UserID, metadata, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: append audit: %w", mapPostgresError(err))
	}
	return nil
}

// ListAudit returns a page of entries, newest first, with the total count.
func (r *AuditRepository) ListAudit(ctx context.Context, filter persistence.AuditFilter) ([]persistence.AuditEntry, int, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		clauses = append(clauses, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		clauses = append(clauses, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count audit: %w", mapPostgresError(err))
	}

	n := len(args)
	rows, err := r.q.Query(ctx, `
		SELECT id, action, entity_type, entity_id, user_id, metadata, created_at
		FROM audit_logs`+where+
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, n+1, n+2),
		append(args, limitArg(filter.Limit), filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list audit: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var entries []persistence.AuditEntry
	for rows.Next() {
		var entry persistence.AuditEntry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID,
			&entry.UserID, &entry.Metadata, &entry.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan audit: %w", mapPostgresError(err))
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: list audit: %w", mapPostgresError(err))
	}
	return entries, total, nil
}
