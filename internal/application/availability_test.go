package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/persistence"
)

type listingBookings struct {
	persistence.BookingRepository
	rows   []persistence.Booking
	err    error
	filter persistence.BookingFilter
}

func (l *listingBookings) ListBookings(_ context.Context, filter persistence.BookingFilter) ([]persistence.Booking, int, error) {
	l.filter = filter
	return l.rows, len(l.rows), l.err
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	booking := func(id string, from, to time.Duration) persistence.Booking {
		return persistence.Booking{ID: id, RoomID: "room-1", StartAt: base.Add(from), EndAt: base.Add(to), Status: StatusConfirmed}
	}

	t.Run("asks storage for overlapping confirmed bookings", func(t *testing.T) {
		t.Parallel()
		repo := &listingBookings{}
		candidate := booking("new", time.Hour, 2*time.Hour)

		require.NoError(t, checkAvailability(context.Background(), repo, candidate))
		assert.Equal(t, "room-1", repo.filter.RoomID)
		assert.Equal(t, []string{StatusConfirmed}, repo.filter.Statuses)
		require.NotNil(t, repo.filter.StartsBefore)
		require.NotNil(t, repo.filter.EndsAfter)
		assert.True(t, repo.filter.StartsBefore.Equal(candidate.EndAt))
		assert.True(t, repo.filter.EndsAfter.Equal(candidate.StartAt))
	})

	t.Run("overlap is a booking conflict", func(t *testing.T) {
		t.Parallel()
		repo := &listingBookings{rows: []persistence.Booking{booking("held", 90*time.Minute, 150*time.Minute)}}

		err := checkAvailability(context.Background(), repo, booking("new", time.Hour, 2*time.Hour))
		var cErr *ConflictError
		require.ErrorAs(t, err, &cErr)
		assert.Equal(t, CodeBookingConflict, cErr.Code)
	})

	t.Run("touching bookings are free", func(t *testing.T) {
		t.Parallel()
		repo := &listingBookings{rows: []persistence.Booking{
			booking("before", 0, time.Hour),
			booking("after", 2*time.Hour, 3*time.Hour),
		}}

		assert.NoError(t, checkAvailability(context.Background(), repo, booking("new", time.Hour, 2*time.Hour)))
	})

	t.Run("a booking does not conflict with itself", func(t *testing.T) {
		t.Parallel()
		repo := &listingBookings{rows: []persistence.Booking{booking("moving", time.Hour, 2*time.Hour)}}

		assert.NoError(t, checkAvailability(context.Background(), repo, booking("moving", 90*time.Minute, 150*time.Minute)))
	})

	t.Run("listing failure is reported", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("disk gone")
		repo := &listingBookings{err: boom}

		err := checkAvailability(context.Background(), repo, booking("new", time.Hour, 2*time.Hour))
		assert.ErrorIs(t, err, boom)
		var cErr *ConflictError
		assert.False(t, errors.As(err, &cErr))
	})
}
