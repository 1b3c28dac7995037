// Package sqlite implements the persistence repositories on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/example/room-booking/internal/persistence"
)

// busyTimeoutMillis is how long the driver waits on a locked database before
// surfacing SQLITE_BUSY to the retry loop.
const busyTimeoutMillis = 5000

// Store is a persistence.Store backed by SQLite. It keeps a single open
// connection so the database sees exactly one writer at a time.
type Store struct {
	db     *sql.DB
	mapper *ErrorMapper
	retry  RetryConfig
}

var _ persistence.Store = (*Store)(nil)

// Open opens the SQLite database at dsn. A bare path, a file: URI, and
// ":memory:" are accepted. Foreign keys and the busy timeout are always on.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: dsn is required")
	}

	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &Store{db: db, mapper: NewErrorMapper(), retry: DefaultRetryConfig()}, nil
}

func withPragmas(dsn string) string {
	values := url.Values{}
	values.Add("_pragma", "foreign_keys(1)")
	values.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	if dsn != ":memory:" && !strings.Contains(dsn, "mode=memory") {
		values.Add("_pragma", "journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + values.Encode()
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repositories returns repositories that run directly on the connection.
// They must not be used from inside WithTransaction, which holds the only
// connection.
func (s *Store) Repositories() persistence.Repositories {
	return s.bind(s.db)
}

func (s *Store) bind(q querier) persistence.Repositories {
	return persistence.Repositories{
		Users:    &UserRepository{q: q, mapper: s.mapper},
		Rooms:    &RoomRepository{q: q, mapper: s.mapper},
		Bookings: &BookingRepository{q: q, mapper: s.mapper},
		Sessions: &SessionRepository{q: q, mapper: s.mapper},
		Audit:    &AuditRepository{q: q, mapper: s.mapper},
	}
}

// WithTransaction runs fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back otherwise, including on panic. A busy
// database causes the whole transaction to be retried.
func (s *Store) WithTransaction(ctx context.Context, fn persistence.TransactionFunc) error {
	return s.retry.withRetry(ctx, func() error {
		return s.runTx(ctx, fn)
	})
}

func (s *Store) runTx(ctx context.Context, fn persistence.TransactionFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, s.bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", s.mapper.MapError(err))
	}
	return nil
}
