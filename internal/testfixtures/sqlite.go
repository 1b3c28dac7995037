package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

// SQLiteHarness provides a migrated SQLite store in a temporary directory for
// integration-style service tests.
type SQLiteHarness struct {
	Store *sqlite.Store
	Repos persistence.Repositories

	tb      testing.TB
	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")

	store, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		Repos: store.Repositories(),
		tb:    tb,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUser inserts a user built from opts.
func (h *SQLiteHarness) SeedUser(opts ...UserOption) UserFixture {
	h.tb.Helper()
	fixture := NewUserFixture(opts...)
	if err := h.Repos.Users.CreateUser(context.Background(), fixture.Persistence()); err != nil {
		h.tb.Fatalf("seed user: %v", err)
	}
	return fixture
}

// SeedRoom inserts a room built from opts.
func (h *SQLiteHarness) SeedRoom(opts ...RoomOption) RoomFixture {
	h.tb.Helper()
	fixture := NewRoomFixture(opts...)
	if err := h.Repos.Rooms.CreateRoom(context.Background(), fixture.Persistence()); err != nil {
		h.tb.Fatalf("seed room: %v", err)
	}
	return fixture
}

// SeedBooking inserts a booking of room by user built from opts.
func (h *SQLiteHarness) SeedBooking(room RoomFixture, user UserFixture, opts ...BookingOption) BookingFixture {
	h.tb.Helper()
	fixture := NewBookingFixture(room, user, opts...)
	if err := h.Repos.Bookings.CreateBooking(context.Background(), fixture.Persistence()); err != nil {
		h.tb.Fatalf("seed booking: %v", err)
	}
	return fixture
}

// AuditActions returns the recorded audit actions for an entity, newest first.
func (h *SQLiteHarness) AuditActions(entityType, entityID string) []string {
	h.tb.Helper()
	entries, _, err := h.Repos.Audit.ListAudit(context.Background(), persistence.AuditFilter{
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      100,
	})
	if err != nil {
		h.tb.Fatalf("list audit: %v", err)
	}
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}
