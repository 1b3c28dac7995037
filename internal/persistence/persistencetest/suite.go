// Package persistencetest holds a behavioural test suite shared by every
// persistence.Store implementation.
package persistencetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/persistence"
)

// Factory returns a freshly migrated, empty store.
type Factory func(t *testing.T) persistence.Store

var seq uint64

func nextID(prefix string) string {
	return fmt.Sprintf("%s-%06d", prefix, atomic.AddUint64(&seq, 1))
}

// Base is the reference instant used by the suite. It carries microsecond
// precision, which every backend must round-trip.
var Base = time.Date(2025, time.March, 10, 9, 0, 0, 123456000, time.UTC)

// Run executes the whole suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("rooms", func(t *testing.T) { testRooms(t, open(t)) })
	t.Run("booking overlap", func(t *testing.T) { testBookingOverlap(t, open(t)) })
	t.Run("booking listing", func(t *testing.T) { testBookingListing(t, open(t)) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, open(t)) })
	t.Run("audit", func(t *testing.T) { testAudit(t, open(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, open(t)) })
	t.Run("concurrent creates", func(t *testing.T) { testConcurrentCreates(t, open(t)) })
}

// SeedUser inserts a user and returns it.
func SeedUser(t *testing.T, repos persistence.Repositories, email string) persistence.User {
	t.Helper()
	user := persistence.User{
		ID:           nextID("user"),
		Email:        email,
		PasswordHash: "hash",
		Name:         "User " + email,
		Role:         persistence.RoleUser,
		CreatedAt:    Base,
		UpdatedAt:    Base,
	}
	require.NoError(t, repos.Users.CreateUser(context.Background(), user))
	return user
}

// SeedRoom inserts an active room and returns it.
func SeedRoom(t *testing.T, repos persistence.Repositories, name string) persistence.Room {
	t.Helper()
	room := persistence.Room{
		ID:        nextID("room"),
		Name:      name,
		Location:  "Floor 1",
		Capacity:  8,
		IsActive:  true,
		CreatedAt: Base,
		UpdatedAt: Base,
	}
	require.NoError(t, repos.Rooms.CreateRoom(context.Background(), room))
	return room
}

// NewBooking builds a confirmed booking for the window [start, end).
func NewBooking(room persistence.Room, user persistence.User, start, end time.Time) persistence.Booking {
	return persistence.Booking{
		ID:        nextID("booking"),
		RoomID:    room.ID,
		UserID:    user.ID,
		Title:     "Sync",
		StartAt:   start,
		EndAt:     end,
		Status:    persistence.BookingStatusConfirmed,
		CreatedAt: Base,
		UpdatedAt: Base,
	}
}

func testUsers(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	repos := store.Repositories()

	alice := SeedUser(t, repos, "Alice@Example.com")

	fetched, err := repos.Users.GetUserByEmail(ctx, "ALICE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, fetched.ID)
	assert.Equal(t, "alice@example.com", fetched.Email)
	assert.True(t, fetched.CreatedAt.Equal(Base))

	dup := alice
	dup.ID = nextID("user")
	err = repos.Users.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	_, err = repos.Users.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	bob := SeedUser(t, repos, "bob@example.com")
	users, err := repos.Users.ListUsersByIDs(ctx, []string{bob.ID, "missing", alice.ID})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, repos.Users.UpdateUserRole(ctx, bob.ID, persistence.RoleAdmin, Base.Add(time.Hour)))
	promoted, err := repos.Users.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, persistence.RoleAdmin, promoted.Role)
	assert.True(t, promoted.UpdatedAt.Equal(Base.Add(time.Hour)))

	err = repos.Users.UpdateUserRole(ctx, "missing", persistence.RoleAdmin, Base)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testRooms(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	repos := store.Repositories()

	a := SeedRoom(t, repos, "Atlas")
	b := SeedRoom(t, repos, "Borealis")

	b.IsActive = false
	b.UpdatedAt = Base.Add(time.Hour)
	require.NoError(t, repos.Rooms.UpdateRoom(ctx, b))

	active, total, err := repos.Rooms.ListRooms(ctx, persistence.RoomFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	all, total, err := repos.Rooms.ListRooms(ctx, persistence.RoomFilter{IncludeInactive: true, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	fetched, err := repos.Rooms.GetRoom(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)

	err = repos.Rooms.UpdateRoom(ctx, persistence.Room{ID: "missing", Name: "x", Capacity: 1, UpdatedAt: Base})
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	bad := persistence.Room{ID: nextID("room"), Name: "Huge", Capacity: 101, IsActive: true, CreatedAt: Base, UpdatedAt: Base}
	assert.ErrorIs(t, repos.Rooms.CreateRoom(ctx, bad), persistence.ErrConstraintViolation)
}

func testBookingOverlap(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	user := SeedUser(t, repos, "overlap@example.com")
	room := SeedRoom(t, repos, "Cobalt")
	other := SeedRoom(t, repos, "Dune")

	first := NewBooking(room, user, Base, Base.Add(time.Hour))
	require.NoError(t, repos.Bookings.CreateBooking(ctx, first))

	t.Run("rejects overlapping insert", func(t *testing.T) {
		clash := NewBooking(room, user, Base.Add(30*time.Minute), Base.Add(90*time.Minute))
		assert.ErrorIs(t, repos.Bookings.CreateBooking(ctx, clash), persistence.ErrOverlap)
	})

	t.Run("allows back-to-back", func(t *testing.T) {
		next := NewBooking(room, user, Base.Add(time.Hour), Base.Add(2*time.Hour))
		assert.NoError(t, repos.Bookings.CreateBooking(ctx, next))
		prev := NewBooking(room, user, Base.Add(-time.Hour), Base)
		assert.NoError(t, repos.Bookings.CreateBooking(ctx, prev))
	})

	t.Run("other rooms are independent", func(t *testing.T) {
		same := NewBooking(other, user, Base, Base.Add(time.Hour))
		assert.NoError(t, repos.Bookings.CreateBooking(ctx, same))
	})

	t.Run("update excludes itself", func(t *testing.T) {
		moved := first
		moved.EndAt = Base.Add(45 * time.Minute)
		moved.Title = "Shorter"
		require.NoError(t, repos.Bookings.UpdateBooking(ctx, moved))

		moved.EndAt = Base.Add(61 * time.Minute)
		assert.ErrorIs(t, repos.Bookings.UpdateBooking(ctx, moved), persistence.ErrOverlap)
	})

	t.Run("cancelled bookings free the slot", func(t *testing.T) {
		cancelled := first
		cancelled.EndAt = Base.Add(45 * time.Minute)
		cancelled.Status = persistence.BookingStatusCancelled
		require.NoError(t, repos.Bookings.UpdateBooking(ctx, cancelled))

		replacement := NewBooking(room, user, Base, Base.Add(time.Hour))
		assert.NoError(t, repos.Bookings.CreateBooking(ctx, replacement))
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		inverted := NewBooking(other, user, Base.Add(5*time.Hour), Base.Add(4*time.Hour))
		assert.ErrorIs(t, repos.Bookings.CreateBooking(ctx, inverted), persistence.ErrConstraintViolation)
	})

	t.Run("rejects unknown room", func(t *testing.T) {
		orphan := NewBooking(persistence.Room{ID: "missing"}, user, Base.Add(9*time.Hour), Base.Add(10*time.Hour))
		assert.ErrorIs(t, repos.Bookings.CreateBooking(ctx, orphan), persistence.ErrForeignKeyViolation)
	})
}

func testBookingListing(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	alice := SeedUser(t, repos, "list-alice@example.com")
	bob := SeedUser(t, repos, "list-bob@example.com")
	room := SeedRoom(t, repos, "Ember")

	var ids []string
	for i := range 5 {
		owner := alice
		if i%2 == 1 {
			owner = bob
		}
		start := Base.Add(time.Duration(4-i) * time.Hour)
		booking := NewBooking(room, owner, start, start.Add(time.Hour))
		booking.ParticipantIDs = []string{bob.ID}
		booking.ExternalParticipants = []string{"Guest"}
		require.NoError(t, repos.Bookings.CreateBooking(ctx, booking))
		ids = append(ids, booking.ID)
	}

	cancelled, err := repos.Bookings.GetBooking(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Ember", cancelled.RoomName)
	assert.Equal(t, alice.Email, cancelled.UserEmail)
	assert.Equal(t, []string{bob.ID}, cancelled.ParticipantIDs)
	assert.Equal(t, []string{"Guest"}, cancelled.ExternalParticipants)
	cancelled.Status = persistence.BookingStatusCancelled
	require.NoError(t, repos.Bookings.UpdateBooking(ctx, cancelled))

	confirmed := []string{persistence.BookingStatusConfirmed}

	items, total, err := repos.Bookings.ListBookings(ctx, persistence.BookingFilter{Statuses: confirmed, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, items, 2)
	assert.True(t, items[0].StartAt.Before(items[1].StartAt))
	assert.True(t, items[0].StartAt.Equal(Base))

	items, total, err = repos.Bookings.ListBookings(ctx, persistence.BookingFilter{Statuses: confirmed, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, items, 2)

	_, total, err = repos.Bookings.ListBookings(ctx, persistence.BookingFilter{UserID: bob.ID, Statuses: confirmed})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = repos.Bookings.ListBookings(ctx, persistence.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	from := Base.Add(time.Hour)
	to := Base.Add(4 * time.Hour)
	items, total, err = repos.Bookings.ListBookings(ctx, persistence.BookingFilter{
		RoomID:     room.ID,
		Statuses:   confirmed,
		StartsFrom: &from,
		EndsBefore: &to,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, item := range items {
		assert.False(t, item.StartAt.Before(from))
		assert.False(t, item.EndAt.After(to))
	}

	windowStart := Base.Add(90 * time.Minute)
	windowEnd := Base.Add(3 * time.Hour)
	items, total, err = repos.Bookings.ListBookings(ctx, persistence.BookingFilter{
		RoomID:       room.ID,
		Statuses:     confirmed,
		StartsBefore: &windowEnd,
		EndsAfter:    &windowStart,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, item := range items {
		assert.True(t, item.StartAt.Before(windowEnd))
		assert.True(t, item.EndAt.After(windowStart))
	}

	// Touching neighbours are not overlaps.
	windowStart, windowEnd = Base.Add(2*time.Hour), Base.Add(3*time.Hour)
	items, total, err = repos.Bookings.ListBookings(ctx, persistence.BookingFilter{
		RoomID:       room.ID,
		Statuses:     confirmed,
		StartsBefore: &windowEnd,
		EndsAfter:    &windowStart,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.True(t, items[0].StartAt.Equal(windowStart))

	_, err = repos.Bookings.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testSessions(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	user := SeedUser(t, repos, "session@example.com")

	active := persistence.Session{
		ID: nextID("session"), UserID: user.ID, TokenHash: "hash-active",
		ExpiresAt: Base.Add(time.Hour), UserAgent: "test", IPAddress: "10.0.0.1", CreatedAt: Base,
	}
	expired := persistence.Session{
		ID: nextID("session"), UserID: user.ID, TokenHash: "hash-expired",
		ExpiresAt: Base.Add(-time.Minute), CreatedAt: Base.Add(-time.Hour),
	}
	require.NoError(t, repos.Sessions.CreateSession(ctx, active))
	require.NoError(t, repos.Sessions.CreateSession(ctx, expired))

	found, err := repos.Sessions.FindActiveSession(ctx, "hash-active", Base)
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)
	assert.Equal(t, "10.0.0.1", found.IPAddress)

	_, err = repos.Sessions.FindActiveSession(ctx, "hash-expired", Base)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = repos.Sessions.FindActiveSession(ctx, "hash-active", Base.Add(time.Hour))
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	dup := active
	dup.ID = nextID("session")
	assert.ErrorIs(t, repos.Sessions.CreateSession(ctx, dup), persistence.ErrDuplicate)

	purged, err := repos.Sessions.DeleteExpiredSessions(ctx, Base)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	require.NoError(t, repos.Sessions.DeleteSession(ctx, active.ID))
	assert.ErrorIs(t, repos.Sessions.DeleteSession(ctx, active.ID), persistence.ErrNotFound)

	n, err := repos.Sessions.DeleteSessionsByTokenHash(ctx, "hash-active")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := range 3 {
		require.NoError(t, repos.Sessions.CreateSession(ctx, persistence.Session{
			ID: nextID("session"), UserID: user.ID, TokenHash: fmt.Sprintf("bulk-%d", i),
			ExpiresAt: Base.Add(time.Hour), CreatedAt: Base,
		}))
	}
	n, err = repos.Sessions.DeleteSessionsByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func testAudit(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	repos := store.Repositories()

	for i := range 3 {
		require.NoError(t, repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID:         nextID("audit"),
			Action:     "BOOKING_CREATED",
			EntityType: persistence.EntityBooking,
			EntityID:   "booking-1",
			UserID:     "user-1",
			Metadata:   map[string]any{"title": "Sync", "seq": float64(i)},
			CreatedAt:  Base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
		ID: nextID("audit"), Action: "ROOM_CREATED", EntityType: persistence.EntityRoom, EntityID: "room-1", CreatedAt: Base,
	}))

	entries, total, err := repos.Audit.ListAudit(ctx, persistence.AuditFilter{EntityType: persistence.EntityBooking, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 2)
	assert.Equal(t, float64(2), entries[0].Metadata["seq"])
	assert.Equal(t, "Sync", entries[0].Metadata["title"])

	_, total, err = repos.Audit.ListAudit(ctx, persistence.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func testTransactions(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	user := SeedUser(t, store.Repositories(), "tx@example.com")

	t.Run("commits", func(t *testing.T) {
		var room persistence.Room
		err := store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
			room = SeedRoom(t, repos, "Committed")
			return repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
				ID: nextID("audit"), Action: "ROOM_CREATED", EntityType: persistence.EntityRoom, EntityID: room.ID, CreatedAt: Base,
			})
		})
		require.NoError(t, err)
		_, err = store.Repositories().Rooms.GetRoom(ctx, room.ID)
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		sentinel := errors.New("boom")
		var room persistence.Room
		err := store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
			room = SeedRoom(t, repos, "RolledBack")
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		_, err = store.Repositories().Rooms.GetRoom(ctx, room.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		var room persistence.Room
		assert.Panics(t, func() {
			_ = store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
				room = SeedRoom(t, repos, "Panicked")
				panic("boom")
			})
		})
		_, err := store.Repositories().Rooms.GetRoom(ctx, room.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("overlap inside a transaction rolls back the audit row", func(t *testing.T) {
		room := SeedRoom(t, store.Repositories(), "Atomic")
		require.NoError(t, store.Repositories().Bookings.CreateBooking(ctx, NewBooking(room, user, Base, Base.Add(time.Hour))))

		auditID := nextID("audit")
		err := store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
			if err := repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
				ID: auditID, Action: "BOOKING_CREATED", EntityType: persistence.EntityBooking, EntityID: "x", CreatedAt: Base,
			}); err != nil {
				return err
			}
			return repos.Bookings.CreateBooking(ctx, NewBooking(room, user, Base.Add(10*time.Minute), Base.Add(20*time.Minute)))
		})
		assert.ErrorIs(t, err, persistence.ErrOverlap)

		_, total, err := store.Repositories().Audit.ListAudit(ctx, persistence.AuditFilter{EntityID: "x"})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("deleting a session twice reports not found", func(t *testing.T) {
		session := persistence.Session{
			ID: nextID("session"), UserID: user.ID, TokenHash: "tx-hash", ExpiresAt: Base.Add(time.Hour), CreatedAt: Base,
		}
		require.NoError(t, store.Repositories().Sessions.CreateSession(ctx, session))

		require.NoError(t, store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
			return repos.Sessions.DeleteSession(ctx, session.ID)
		}))
		err := store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
			return repos.Sessions.DeleteSession(ctx, session.ID)
		})
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}

// testConcurrentCreates races many writers for one slot; exactly one wins.
func testConcurrentCreates(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	user := SeedUser(t, store.Repositories(), "race@example.com")
	room := SeedRoom(t, store.Repositories(), "Race")

	const writers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		overlaps  atomic.Int32
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := Base.Add(time.Duration(i) * time.Minute)
			err := store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
				return repos.Bookings.CreateBooking(ctx, NewBooking(room, user, start, start.Add(time.Hour)))
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, persistence.ErrOverlap):
				overlaps.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, writers-1, overlaps.Load())
}
