package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/room-booking/internal/persistence"
)

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	store       persistence.Store
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(store persistence.Store, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(store, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(store persistence.Store, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{store: store, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create room", "room created", "room_id", room.ID)
	}()

	if !params.Principal.IsAdmin() {
		err = ErrForbidden
		return
	}

	now := s.now().UTC()
	record := persistence.Room{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(params.Name),
		Location:  strings.TrimSpace(params.Location),
		Capacity:  params.Capacity,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if vErr := validateRoom(record); vErr.HasErrors() {
		err = vErr
		return
	}
	if s.store == nil {
		err = fmt.Errorf("room store not configured")
		return
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		if err := repos.Rooms.CreateRoom(ctx, record); err != nil {
			return mapRoomRepoError(err)
		}
		return repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID:         s.idGenerator(),
			Action:     ActionRoomCreated,
			EntityType: persistence.EntityRoom,
			EntityID:   record.ID,
			UserID:     params.Principal.UserID,
			Metadata: map[string]any{
				"name":     record.Name,
				"capacity": record.Capacity,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return
	}

	room = toRoom(record)
	return
}

// GetRoom returns a room. Inactive rooms are hidden from non-administrators.
func (s *RoomService) GetRoom(ctx context.Context, principal Principal, roomID string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	if s.store == nil {
		return Room{}, fmt.Errorf("room store not configured")
	}

	record, err := s.store.Repositories().Rooms.GetRoom(ctx, strings.TrimSpace(roomID))
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	if !record.IsActive && !principal.IsAdmin() {
		return Room{}, ErrNotFound
	}
	return toRoom(record), nil
}

// ListRooms returns a page of rooms ordered by name. Only administrators see
// inactive rooms, and only when they ask for them.
func (s *RoomService) ListRooms(ctx context.Context, params ListRoomsParams) (RoomPage, error) {
	if s == nil {
		return RoomPage{}, fmt.Errorf("RoomService is nil")
	}
	if s.store == nil {
		return RoomPage{}, nil
	}

	page, limit := normalizePage(params.Page, params.Limit)
	records, total, err := s.store.Repositories().Rooms.ListRooms(ctx, persistence.RoomFilter{
		IncludeInactive: params.IncludeInactive && params.Principal.IsAdmin(),
		Offset:          (page - 1) * limit,
		Limit:           limit,
	})
	if err != nil {
		return RoomPage{}, fmt.Errorf("list rooms: %w", err)
	}

	out := RoomPage{Items: make([]Room, 0, len(records)), Meta: pageMeta(total, page, limit)}
	for _, r := range records {
		out.Items = append(out.Items, toRoom(r))
	}
	return out, nil
}

// DeactivateRoom hides a room from new bookings. Existing bookings are left
// untouched. Deactivating an inactive room is a no-op.
func (s *RoomService) DeactivateRoom(ctx context.Context, principal Principal, roomID string) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "DeactivateRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to deactivate room", "room deactivated")
	}()

	if !principal.IsAdmin() {
		err = ErrForbidden
		return
	}
	if s.store == nil {
		err = fmt.Errorf("room store not configured")
		return
	}

	now := s.now().UTC()
	var record persistence.Room
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		existing, err := repos.Rooms.GetRoom(ctx, strings.TrimSpace(roomID))
		if err != nil {
			return mapRoomRepoError(err)
		}
		record = existing
		if !existing.IsActive {
			return nil
		}

		record.IsActive = false
		record.UpdatedAt = now
		if err := repos.Rooms.UpdateRoom(ctx, record); err != nil {
			return mapRoomRepoError(err)
		}
		return repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID:         s.idGenerator(),
			Action:     ActionRoomDeactivated,
			EntityType: persistence.EntityRoom,
			EntityID:   record.ID,
			UserID:     principal.UserID,
			Metadata:   map[string]any{"name": record.Name},
			CreatedAt:  now,
		})
	})
	if err != nil {
		return
	}

	room = toRoom(record)
	return
}

func validateRoom(room persistence.Room) *ValidationError {
	vErr := &ValidationError{}

	if n := utf8.RuneCountInString(room.Name); n == 0 {
		vErr.add("name", "name is required")
	} else if n > 100 {
		vErr.add("name", "name must be at most 100 characters")
	}

	if utf8.RuneCountInString(room.Location) > 200 {
		vErr.add("location", "location must be at most 200 characters")
	}

	if room.Capacity < 1 || room.Capacity > 100 {
		vErr.add("capacity", "capacity must be between 1 and 100")
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		return NewValidationError("capacity", "room violates a storage constraint")
	}
	return fmt.Errorf("room storage: %w", err)
}
