package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/persistence"
)

func TestPoolConfig_ApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := PoolConfig{ConnString: "postgres://localhost/booking"}
	cfg.ApplyDefaults()

	assert.EqualValues(t, 20, cfg.MaxConns)
	assert.EqualValues(t, 2, cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, time.Minute, cfg.HealthCheckPeriod)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.EqualValues(t, 5, cfg.StartupAttempts)
	require.NoError(t, cfg.Validate())

	custom := PoolConfig{ConnString: "postgres://localhost/booking", MaxConns: 4, MinConns: 1}
	custom.ApplyDefaults()
	assert.EqualValues(t, 4, custom.MaxConns)
	assert.EqualValues(t, 1, custom.MinConns)
}

func TestPoolConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.Error(t, (&PoolConfig{}).Validate())
	assert.Error(t, (&PoolConfig{ConnString: "postgres://x", MaxConns: 1, MinConns: 2}).Validate())
}

func TestNewPool_RejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewPool(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewPool(context.Background(), &PoolConfig{})
	assert.Error(t, err)
}

func TestMapPostgresError(t *testing.T) {
	t.Parallel()

	pgErr := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, ConstraintName: "c"})
	}

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"exclusion", pgErr(pgerrcode.ExclusionViolation), persistence.ErrOverlap},
		{"unique", pgErr(pgerrcode.UniqueViolation), persistence.ErrDuplicate},
		{"foreign key", pgErr(pgerrcode.ForeignKeyViolation), persistence.ErrForeignKeyViolation},
		{"check", pgErr(pgerrcode.CheckViolation), persistence.ErrConstraintViolation},
		{"no rows", pgx.ErrNoRows, persistence.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, mapPostgresError(tc.err), tc.want)
		})
	}

	assert.NoError(t, mapPostgresError(nil))
	plain := errors.New("connection reset")
	assert.Equal(t, plain, mapPostgresError(plain))

	assert.True(t, isRetryable(mapPostgresError(pgErr(pgerrcode.DeadlockDetected))))
	assert.True(t, isRetryable(pgErr(pgerrcode.SerializationFailure)))
	assert.False(t, isRetryable(mapPostgresError(pgErr(pgerrcode.ExclusionViolation))))
}
