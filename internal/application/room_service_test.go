package application_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/testfixtures"
)

func TestRoomService_CreateRoom(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	factory := testfixtures.NewServiceFactory()
	svc := factory.NewRoomService(harness.Store)
	admin := harness.SeedUser(testfixtures.WithUserAdmin())
	member := harness.SeedUser()

	t.Run("requires administrator privileges", func(t *testing.T) {
		_, err := svc.CreateRoom(context.Background(), application.CreateRoomParams{
			Principal: member.Principal(),
			Name:      "Nope",
			Capacity:  4,
		})
		assert.ErrorIs(t, err, application.ErrForbidden)
	})

	t.Run("validates input", func(t *testing.T) {
		_, err := svc.CreateRoom(context.Background(), application.CreateRoomParams{
			Principal: admin.Principal(),
			Name:      "  ",
			Location:  strings.Repeat("x", 201),
			Capacity:  101,
		})
		var vErr *application.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "name")
		assert.Contains(t, vErr.FieldErrors, "location")
		assert.Contains(t, vErr.FieldErrors, "capacity")
	})

	t.Run("persists an active room with an audit row", func(t *testing.T) {
		room, err := svc.CreateRoom(context.Background(), application.CreateRoomParams{
			Principal: admin.Principal(),
			Name:      " Orion ",
			Location:  "Floor 3",
			Capacity:  10,
		})
		require.NoError(t, err)
		assert.Equal(t, "Orion", room.Name)
		assert.True(t, room.IsActive)

		stored, err := harness.Repos.Rooms.GetRoom(context.Background(), room.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, stored.Capacity)
		assert.Equal(t, []string{application.ActionRoomCreated}, harness.AuditActions(persistence.EntityRoom, room.ID))
	})
}

func TestRoomService_Visibility(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	factory := testfixtures.NewServiceFactory()
	svc := factory.NewRoomService(harness.Store)
	admin := harness.SeedUser(testfixtures.WithUserAdmin())
	member := harness.SeedUser()
	active := harness.SeedRoom(testfixtures.WithRoomName("Active"))
	hidden := harness.SeedRoom(testfixtures.WithRoomName("Hidden"), testfixtures.WithRoomInactive())
	ctx := context.Background()

	t.Run("members never see inactive rooms", func(t *testing.T) {
		page, err := svc.ListRooms(ctx, application.ListRoomsParams{Principal: member.Principal(), IncludeInactive: true})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, active.ID, page.Items[0].ID)

		_, err = svc.GetRoom(ctx, member.Principal(), hidden.ID)
		assert.ErrorIs(t, err, application.ErrNotFound)
	})

	t.Run("admins see inactive rooms on request", func(t *testing.T) {
		page, err := svc.ListRooms(ctx, application.ListRoomsParams{Principal: admin.Principal()})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Meta.Total)

		page, err = svc.ListRooms(ctx, application.ListRoomsParams{Principal: admin.Principal(), IncludeInactive: true})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Meta.Total)

		room, err := svc.GetRoom(ctx, admin.Principal(), hidden.ID)
		require.NoError(t, err)
		assert.False(t, room.IsActive)
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := svc.GetRoom(ctx, admin.Principal(), "missing")
		assert.ErrorIs(t, err, application.ErrNotFound)
	})
}

func TestRoomService_DeactivateRoom(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	factory := testfixtures.NewServiceFactory()
	rooms := factory.NewRoomService(harness.Store)
	bookings := factory.NewBookingService(harness.Store, application.BookingServiceConfig{})
	admin := harness.SeedUser(testfixtures.WithUserAdmin())
	member := harness.SeedUser()
	room := harness.SeedRoom()
	existing := harness.SeedBooking(room, member)
	ctx := context.Background()

	_, err := rooms.DeactivateRoom(ctx, member.Principal(), room.ID)
	assert.ErrorIs(t, err, application.ErrForbidden)

	deactivated, err := rooms.DeactivateRoom(ctx, admin.Principal(), room.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	again, err := rooms.DeactivateRoom(ctx, admin.Principal(), room.ID)
	require.NoError(t, err)
	assert.False(t, again.IsActive)
	assert.Equal(t, []string{application.ActionRoomDeactivated}, harness.AuditActions(persistence.EntityRoom, room.ID))

	_, err = rooms.DeactivateRoom(ctx, admin.Principal(), "missing")
	assert.ErrorIs(t, err, application.ErrNotFound)

	kept, err := bookings.GetBooking(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusConfirmed, kept.Status)

	start := factory.Clock.Now().Add(24 * time.Hour)
	_, err = bookings.CreateBooking(ctx, application.CreateBookingParams{
		Principal: member.Principal(),
		RoomID:    room.ID,
		Title:     "Too late",
		StartAt:   start,
		EndAt:     start.Add(time.Hour),
	})
	var cErr *application.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, application.CodeRoomInactive, cErr.Code)

	// Existing bookings in a deactivated room stay editable and cancellable.
	title := "Moved after deactivation"
	newEnd := existing.EndAt.Add(30 * time.Minute)
	updated, err := bookings.UpdateBooking(ctx, application.UpdateBookingParams{
		Principal: member.Principal(),
		BookingID: existing.ID,
		Title:     &title,
		EndAt:     &newEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.True(t, updated.EndAt.Equal(newEnd))

	cancelled, err := bookings.CancelBooking(ctx, member.Principal(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusCancelled, cancelled.Status)
}
