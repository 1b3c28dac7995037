package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository using SQLite.
type AuditRepository struct {
	q      querier
	mapper *ErrorMapper
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
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("sqlite: encode audit metadata: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.UserID,
		string(encoded),
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append audit: %w", r.mapper.MapError(err))
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
		clauses = append(clauses, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count audit: %w", r.mapper.MapError(err))
	}

	pageArgs := append(append([]any{}, args...), limitArg(filter.Limit), filter.Offset)
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, action, entity_type, entity_id, user_id, metadata, created_at
		FROM audit_logs`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list audit: %w", r.mapper.MapError(err))
	}
	defer rows.Close()

	var entries []persistence.AuditEntry
	for rows.Next() {
		var (
			entry             persistence.AuditEntry
			metadata, created string
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.UserID, &metadata, &created); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scan audit: %w", r.mapper.MapError(err))
		}
		if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
			return nil, 0, fmt.Errorf("sqlite: decode audit metadata: %w", err)
		}
		if entry.CreatedAt, err = parseTime(created); err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: list audit: %w", r.mapper.MapError(err))
	}
	return entries, total, nil
}
