package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/room-booking/internal/persistence"
)

// mapPostgresError maps PostgreSQL errors to persistence sentinels. The driver
// error stays in the chain for logging.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.ExclusionViolation:
		return fmt.Errorf("%w: %s: %v", persistence.ErrOverlap, pgErr.ConstraintName, err)
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s: %v", persistence.ErrDuplicate, pgErr.ConstraintName, err)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %s: %v", persistence.ErrForeignKeyViolation, pgErr.ConstraintName, err)
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return fmt.Errorf("%w: %s: %v", persistence.ErrConstraintViolation, pgErr.ConstraintName, err)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("transaction conflict (retryable): %w", err)
	default:
		return fmt.Errorf("postgres error [%s]: %s (detail: %s): %w",
			pgErr.Code, pgErr.Message, pgErr.Detail, err)
	}
}

// isRetryable reports whether the whole transaction may be run again.
// Concurrent inserts checked by one exclusion constraint can deadlock; the
// retried transaction then sees the committed row and fails with an overlap.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}
