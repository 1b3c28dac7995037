// Package postgres implements the persistence repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/room-booking/internal/persistence"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a persistence.Store backed by a pgx connection pool.
type Store struct {
	pool       *pgxpool.Pool
	connString string
	txAttempts uint
}

var _ persistence.Store = (*Store)(nil)

// Open creates the pool described by cfg.
func Open(ctx context.Context, cfg PoolConfig) (*Store, error) {
	pool, err := NewPool(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, connString: cfg.ConnString, txAttempts: 3}, nil
}

// Pool exposes the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Repositories returns repositories bound to the pool.
func (s *Store) Repositories() persistence.Repositories {
	return bind(s.pool)
}

func bind(q querier) persistence.Repositories {
	return persistence.Repositories{
		Users:    &UserRepository{q: q},
		Rooms:    &RoomRepository{q: q},
		Bookings: &BookingRepository{q: q},
		Sessions: &SessionRepository{q: q},
		Audit:    &AuditRepository{q: q},
	}
}

// WithTransaction runs fn inside a read-committed transaction. Deadlocks and
// serialization failures rerun the whole transaction a bounded number of times.
func (s *Store) WithTransaction(ctx context.Context, fn persistence.TransactionFunc) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.runTx(ctx, fn)
		if err != nil && !isRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(s.txAttempts))
	return err
}

func (s *Store) runTx(ctx context.Context, fn persistence.TransactionFunc) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(ctx, bind(tx)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transaction: %w", mapPostgresError(err))
	}
	return nil
}
