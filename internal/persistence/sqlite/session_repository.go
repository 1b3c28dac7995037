package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	q      querier
	mapper *ErrorMapper
}

// CreateSession stores a new refresh session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.UserID == "" || strings.TrimSpace(session.TokenHash) == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, user_agent, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.TokenHash,
		formatTime(session.ExpiresAt),
		session.UserAgent,
		session.IPAddress,
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create session: %w", r.mapper.MapError(err))
	}
	return nil
}

// FindActiveSession returns the session for tokenHash if it expires after now.
func (r *SessionRepository) FindActiveSession(ctx context.Context, tokenHash string, now time.Time) (persistence.Session, error) {
	var (
		session          persistence.Session
		expires, created string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, user_agent, ip_address, created_at
		FROM sessions
		WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, formatTime(now),
	).Scan(&session.ID, &session.UserID, &session.TokenHash, &expires, &session.UserAgent, &session.IPAddress, &created)
	if err == sql.ErrNoRows {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Session{}, fmt.Errorf("sqlite: find session: %w", r.mapper.MapError(err))
	}
	if session.ExpiresAt, err = parseTime(expires); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// DeleteSession removes one session by ID.
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", r.mapper.MapError(err))
	}
	return requireAffected(result)
}

// DeleteSessionsByTokenHash removes every session for tokenHash.
func (r *SessionRepository) DeleteSessionsByTokenHash(ctx context.Context, tokenHash string) (int64, error) {
	return r.deleteWhere(ctx, "token_hash = ?", tokenHash)
}

// DeleteSessionsByUser removes every session belonging to userID.
func (r *SessionRepository) DeleteSessionsByUser(ctx context.Context, userID string) (int64, error) {
	return r.deleteWhere(ctx, "user_id = ?", userID)
}

// DeleteExpiredSessions removes sessions that expired at or before now.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, "expires_at <= ?", formatTime(now))
}

func (r *SessionRepository) deleteWhere(ctx context.Context, where string, arg any) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE `+where, arg)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete sessions: %w", r.mapper.MapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n, nil
}
