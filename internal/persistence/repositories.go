package persistence

import (
	"context"
	"time"
)

// UserRepository stores user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]User, error)
	// UpdateUserRole changes the role of an existing user.
	UpdateUserRole(ctx context.Context, id, role string, updatedAt time.Time) error
}

// RoomFilter narrows room listings.
type RoomFilter struct {
	IncludeInactive bool
	Offset          int
	Limit           int
}

// RoomRepository stores meeting rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) error
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, int, error)
}

// BookingFilter narrows booking listings. Empty fields do not filter.
// StartsFrom matches start_at >= value and EndsBefore matches end_at <= value.
// StartsBefore matches start_at < value and EndsAfter matches end_at > value,
// so setting both to a window's end and start selects overlapping bookings.
type BookingFilter struct {
	RoomID       string
	UserID       string
	Statuses     []string
	StartsFrom   *time.Time
	EndsBefore   *time.Time
	StartsBefore *time.Time
	EndsAfter    *time.Time
	Offset       int
	Limit        int
}

// BookingRepository stores reservations. Implementations must reject any write
// that leaves two confirmed bookings of one room overlapping with ErrOverlap,
// including under concurrent writers.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	UpdateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, int, error)
}

// SessionRepository stores refresh sessions keyed by token digest.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	// FindActiveSession returns the session with tokenHash that expires after now.
	FindActiveSession(ctx context.Context, tokenHash string, now time.Time) (Session, error)
	// DeleteSession removes one session, returning ErrNotFound if it is already gone.
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsByTokenHash(ctx context.Context, tokenHash string) (int64, error)
	DeleteSessionsByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Offset     int
	Limit      int
}

// AuditRepository appends and reads audit entries. Entries are never updated.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, int, error)
}

// Repositories groups repositories bound to the same connection or transaction.
type Repositories struct {
	Users    UserRepository
	Rooms    RoomRepository
	Bookings BookingRepository
	Sessions SessionRepository
	Audit    AuditRepository
}

// TransactionFunc runs inside a transaction with repositories bound to it.
type TransactionFunc func(ctx context.Context, repos Repositories) error

// Store is the unit of work exposed by every storage backend.
type Store interface {
	// Repositories returns repositories that run outside any transaction.
	Repositories() Repositories
	// WithTransaction commits when fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn TransactionFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// NormalizeLimit clamps a page size into [1, max], substituting def for non-positive values.
func NormalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
