package postgres

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using PostgreSQL.
type SessionRepository struct {
	q querier
}

// CreateSession stores a new refresh session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.UserID == "" || strings.TrimSpace(session.TokenHash) == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, user_agent, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::inet, $7)`,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.ExpiresAt.UTC(),
		session.UserAgent,
		inetOrNil(session.IPAddress),
		session.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: create session: %w", mapPostgresError(err))
	}
	return nil
}

// FindActiveSession returns the session for tokenHash if it expires after now.
func (r *SessionRepository) FindActiveSession(ctx context.Context, tokenHash string, now time.Time) (persistence.Session, error) {
	var session persistence.Session
	err := r.q.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, user_agent,
		       COALESCE(host(ip_address), ''), created_at
		FROM sessions
		WHERE token_hash = $1 AND expires_at > $2`,
		tokenHash, now.UTC(),
	).Scan(&session.ID, &session.UserID, &session.TokenHash, &session.ExpiresAt,
		&session.UserAgent, &session.IPAddress, &session.CreatedAt)
	if err != nil {
		return persistence.Session{}, fmt.Errorf("postgres: find session: %w", mapPostgresError(err))
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	return session, nil
}

// DeleteSession removes one session by ID.
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	n, err := r.deleteWhere(ctx, "id = $1", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteSessionsByTokenHash removes every session for tokenHash.
func (r *SessionRepository) DeleteSessionsByTokenHash(ctx context.Context, tokenHash string) (int64, error) {
	return r.deleteWhere(ctx, "token_hash = $1", tokenHash)
}

// DeleteSessionsByUser removes every session belonging to userID.
func (r *SessionRepository) DeleteSessionsByUser(ctx context.Context, userID string) (int64, error) {
	return r.deleteWhere(ctx, "user_id = $1", userID)
}

// DeleteExpiredSessions removes sessions that expired at or before now.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, "expires_at <= $1", now.UTC())
}

func (r *SessionRepository) deleteWhere(ctx context.Context, where string, arg any) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE `+where, arg)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete sessions: %w", mapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}

// inetOrNil returns the canonical address for the inet column, or nil when
// the value is empty or not an IP address.
func inetOrNil(addr string) any {
	parsed, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		return nil
	}
	return parsed.Unmap().String()
}
