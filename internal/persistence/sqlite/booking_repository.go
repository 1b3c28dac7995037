package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
// Overlap between confirmed bookings is rejected by the bookings triggers.
type BookingRepository struct {
	q      querier
	mapper *ErrorMapper
}

const bookingSelect = `
	SELECT b.id, b.room_id, b.user_id, b.title, b.start_at, b.end_at, b.status,
	       b.participant_ids, b.external_participants, b.created_at, b.updated_at,
	       r.name, r.location, u.name, u.email
	FROM bookings b
	JOIN rooms r ON r.id = b.room_id
	JOIN users u ON u.id = b.user_id`

// CreateBooking inserts a booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}
	participants, externals, err := encodeParticipants(booking)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO bookings (id, room_id, user_id, title, start_at, end_at, status,
		                      participant_ids, external_participants, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.RoomID,
		booking.UserID,
		booking.Title,
		formatTime(booking.StartAt),
		formatTime(booking.EndAt),
		booking.Status,
		participants,
		externals,
		formatTime(booking.CreatedAt),
		formatTime(booking.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create booking: %w", r.mapper.MapError(err))
	}
	return nil
}

// UpdateBooking overwrites the mutable fields of an existing booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	participants, externals, err := encodeParticipants(booking)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE bookings
		SET room_id = ?, title = ?, start_at = ?, end_at = ?, status = ?,
		    participant_ids = ?, external_participants = ?, updated_at = ?
		WHERE id = ?`,
		booking.RoomID,
		booking.Title,
		formatTime(booking.StartAt),
		formatTime(booking.EndAt),
		booking.Status,
		participants,
		externals,
		formatTime(booking.UpdatedAt),
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update booking: %w", r.mapper.MapError(err))
	}
	return requireAffected(result)
}

// GetBooking retrieves a booking with its room and owner display fields.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := r.q.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id)
	return r.scan(row)
}

// ListBookings returns a page of bookings ordered by start time, with the
// total number of matches.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, int, error) {
	where, args := bookingWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM bookings b` + where
	if err := r.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count bookings: %w", r.mapper.MapError(err))
	}

	pageArgs := append(append([]any{}, args...), limitArg(filter.Limit), filter.Offset)
	rows, err := r.q.QueryContext(ctx,
		bookingSelect+where+` ORDER BY b.start_at, b.id LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list bookings: %w", r.mapper.MapError(err))
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: list bookings: %w", r.mapper.MapError(err))
	}
	return bookings, total, nil
}

func bookingWhere(filter persistence.BookingFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "b.room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "b.user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "b.status IN ("+strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.StartsFrom != nil {
		clauses = append(clauses, "b.start_at >= ?")
		args = append(args, formatTime(*filter.StartsFrom))
	}
	if filter.EndsBefore != nil {
		clauses = append(clauses, "b.end_at <= ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "b.start_at < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		clauses = append(clauses, "b.end_at > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *BookingRepository) scan(row rowScanner) (persistence.Booking, error) {
	var (
		b                            persistence.Booking
		start, end, created, updated string
		participants, externals      string
	)
	err := row.Scan(
		&b.ID, &b.RoomID, &b.UserID, &b.Title, &start, &end, &b.Status,
		&participants, &externals, &created, &updated,
		&b.RoomName, &b.RoomLocation, &b.UserName, &b.UserEmail,
	)
	if err == sql.ErrNoRows {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Booking{}, fmt.Errorf("sqlite: scan booking: %w", r.mapper.MapError(err))
	}

	if b.StartAt, err = parseTime(start); err != nil {
		return persistence.Booking{}, err
	}
	if b.EndAt, err = parseTime(end); err != nil {
		return persistence.Booking{}, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Booking{}, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Booking{}, err
	}

	if err := json.Unmarshal([]byte(participants), &b.ParticipantIDs); err != nil {
		return persistence.Booking{}, fmt.Errorf("sqlite: decode participant ids: %w", err)
	}
	if err := json.Unmarshal([]byte(externals), &b.ExternalParticipants); err != nil {
		return persistence.Booking{}, fmt.Errorf("sqlite: decode external participants: %w", err)
	}
	return b, nil
}

func encodeParticipants(b persistence.Booking) (string, string, error) {
	ids := b.ParticipantIDs
	if ids == nil {
		ids = []string{}
	}
	externals := b.ExternalParticipants
	if externals == nil {
		externals = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode participant ids: %w", err)
	}
	externalsJSON, err := json.Marshal(externals)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode external participants: %w", err)
	}
	return string(idsJSON), string(externalsJSON), nil
}
