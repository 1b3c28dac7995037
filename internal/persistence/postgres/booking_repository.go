package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/example/room-booking/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using
// PostgreSQL. The booking_no_overlap exclusion constraint rejects overlapping
// confirmed bookings.
type BookingRepository struct {
	q querier
}

const bookingSelect = `
	SELECT b.id, b.room_id, b.user_id, b.title, b.start_at, b.end_at, b.status,
	       b.participant_ids, b.external_participants, b.created_at, b.updated_at,
	       r.name, r.location, u.name, u.email`

const bookingFrom = `
	FROM bookings b
	JOIN rooms r ON r.id = b.room_id
	JOIN users u ON u.id = b.user_id`

// CreateBooking inserts a booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO bookings (id, room_id, user_id, title, start_at, end_at, status,
		                      participant_ids, external_participants, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		booking.ID,
		booking.RoomID,
		booking.UserID,
		booking.Title,
		booking.StartAt.UTC(),
		booking.EndAt.UTC(),
		booking.Status,
		nonNil(booking.ParticipantIDs),
		nonNil(booking.ExternalParticipants),
		booking.CreatedAt.UTC(),
		booking.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: create booking: %w", mapPostgresError(err))
	}
	return nil
}

// UpdateBooking overwrites the mutable fields of an existing booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE bookings
		SET room_id = $1, title = $2, start_at = $3, end_at = $4, status = $5,
		    participant_ids = $6, external_participants = $7, updated_at = $8
		WHERE id = $9`,
		booking.RoomID,
		booking.Title,
		booking.StartAt.UTC(),
		booking.EndAt.UTC(),
		booking.Status,
		nonNil(booking.ParticipantIDs),
		nonNil(booking.ExternalParticipants),
		booking.UpdatedAt.UTC(),
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update booking: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetBooking retrieves a booking with its room and owner display fields.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return scanBooking(r.q.QueryRow(ctx, bookingSelect+bookingFrom+` WHERE b.id = $1`, id))
}

// ListBookings returns a page of bookings ordered by start time, with the
// total number of matches.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, int, error) {
	where, args := bookingWhere(filter)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM bookings b`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count bookings: %w", mapPostgresError(err))
	}

	n := len(args)
	query := bookingSelect + bookingFrom + where +
		fmt.Sprintf(` ORDER BY b.start_at, b.id LIMIT $%d OFFSET $%d`, n+1, n+2)
	rows, err := r.q.Query(ctx, query, append(args, limitArg(filter.Limit), filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list bookings: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: list bookings: %w", mapPostgresError(err))
	}
	return bookings, total, nil
}

func bookingWhere(filter persistence.BookingFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.RoomID != "" {
		add("b.room_id = $%d", filter.RoomID)
	}
	if filter.UserID != "" {
		add("b.user_id = $%d", filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		add("b.status = ANY($%d)", filter.Statuses)
	}
	if filter.StartsFrom != nil {
		add("b.start_at >= $%d", filter.StartsFrom.UTC())
	}
	if filter.EndsBefore != nil {
		add("b.end_at <= $%d", filter.EndsBefore.UTC())
	}
	if filter.StartsBefore != nil {
		add("b.start_at < $%d", filter.StartsBefore.UTC())
	}
	if filter.EndsAfter != nil {
		add("b.end_at > $%d", filter.EndsAfter.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanBooking(row pgx.Row) (persistence.Booking, error) {
	var b persistence.Booking
	err := row.Scan(
		&b.ID, &b.RoomID, &b.UserID, &b.Title, &b.StartAt, &b.EndAt, &b.Status,
		&b.ParticipantIDs, &b.ExternalParticipants, &b.CreatedAt, &b.UpdatedAt,
		&b.RoomName, &b.RoomLocation, &b.UserName, &b.UserEmail,
	)
	if err != nil {
		return persistence.Booking{}, fmt.Errorf("postgres: scan booking: %w", mapPostgresError(err))
	}
	b.StartAt = b.StartAt.UTC()
	b.EndAt = b.EndAt.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
