package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/persistence"
)

type recordingQuerier struct {
	args []any
}

func (q *recordingQuerier) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	q.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (q *recordingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("unexpected Query")
}

func (q *recordingQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow")
}

func TestInetOrNil(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want any
	}{
		{in: "", want: nil},
		{in: "203.0.113.7", want: "203.0.113.7"},
		{in: " 2001:db8::1 ", want: "2001:db8::1"},
		{in: "::ffff:192.0.2.1", want: "192.0.2.1"},
		{in: "not-an-ip'; --", want: nil},
		{in: "192.0.2.1:8080", want: nil},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, inetOrNil(tc.in), tc.in)
	}
}

func TestSessionRepository_CreateSessionDropsInvalidAddress(t *testing.T) {
	t.Parallel()

	q := &recordingQuerier{}
	repo := &SessionRepository{q: q}
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	err := repo.CreateSession(context.Background(), persistence.Session{
		ID:        "s1",
		UserID:    "u1",
		TokenHash: "hash",
		ExpiresAt: now.Add(time.Hour),
		UserAgent: "curl/8",
		IPAddress: "junk",
		CreatedAt: now,
	})
	require.NoError(t, err)
	require.Len(t, q.args, 7)
	assert.Nil(t, q.args[5])
}
