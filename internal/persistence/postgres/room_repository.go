package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using PostgreSQL.
type RoomRepository struct {
	q querier
}

const roomColumns = `id, name, location, capacity, is_active, created_at, updated_at`

// CreateRoom inserts a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		room.ID, room.Name, room.Location, room.Capacity, room.IsActive,
		room.CreatedAt.UTC(), room.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: create room: %w", mapPostgresError(err))
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return scanRoom(r.q.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

// UpdateRoom overwrites the mutable fields of an existing room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE rooms
		SET name = $1, location = $2, capacity = $3, is_active = $4, updated_at = $5
		WHERE id = $6`,
		room.Name, room.Location, room.Capacity, room.IsActive, room.UpdatedAt.UTC(), room.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update room: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListRooms returns a page of rooms ordered by name, with the total count.
func (r *RoomRepository) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+roomColumns+`, COUNT(*) OVER ()
		FROM rooms
		WHERE $1 OR is_active
		ORDER BY name, id
		LIMIT $2 OFFSET $3`,
		filter.IncludeInactive, limitArg(filter.Limit), filter.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list rooms: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var (
		rooms []persistence.Room
		total int
	)
	for rows.Next() {
		var room persistence.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &room.IsActive,
			&room.CreatedAt, &room.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan room: %w", mapPostgresError(err))
		}
		room.CreatedAt = room.CreatedAt.UTC()
		room.UpdatedAt = room.UpdatedAt.UTC()
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: list rooms: %w", mapPostgresError(err))
	}
	if len(rooms) == 0 && filter.Offset > 0 {
		if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM rooms WHERE $1 OR is_active`, filter.IncludeInactive).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("postgres: count rooms: %w", mapPostgresError(err))
		}
	}
	return rooms, total, nil
}

func scanRoom(row pgx.Row) (persistence.Room, error) {
	var room persistence.Room
	err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &room.IsActive, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return persistence.Room{}, fmt.Errorf("postgres: scan room: %w", mapPostgresError(err))
	}
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return room, nil
}

// limitArg turns a non-positive limit into no limit.
func limitArg(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
