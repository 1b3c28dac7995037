package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	q      querier
	mapper *ErrorMapper
}

const roomColumns = `id, name, location, capacity, is_active, created_at, updated_at`

// CreateRoom inserts a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		room.ID,
		room.Name,
		room.Location,
		room.Capacity,
		room.IsActive,
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create room: %w", r.mapper.MapError(err))
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	return r.scan(row)
}

// UpdateRoom overwrites the mutable fields of an existing room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, location = ?, capacity = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		room.Name,
		room.Location,
		room.Capacity,
		room.IsActive,
		formatTime(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update room: %w", r.mapper.MapError(err))
	}
	return requireAffected(result)
}

// ListRooms returns a page of rooms ordered by name, with the total count.
func (r *RoomRepository) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, int, error) {
	where := ""
	if !filter.IncludeInactive {
		where = " WHERE is_active = 1"
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count rooms: %w", r.mapper.MapError(err))
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM rooms`+where+` ORDER BY name, id LIMIT ? OFFSET ?`,
		limitArg(filter.Limit), filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list rooms: %w", r.mapper.MapError(err))
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: list rooms: %w", r.mapper.MapError(err))
	}
	return rooms, total, nil
}

func (r *RoomRepository) scan(row rowScanner) (persistence.Room, error) {
	var (
		room             persistence.Room
		created, updated string
	)
	err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &room.IsActive, &created, &updated)
	if err == sql.ErrNoRows {
		return persistence.Room{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Room{}, fmt.Errorf("sqlite: scan room: %w", r.mapper.MapError(err))
	}
	if room.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// limitArg turns a non-positive limit into SQLite's "no limit".
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
