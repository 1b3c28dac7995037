package application

import (
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// Roles.
const (
	RoleUser  = persistence.RoleUser
	RoleAdmin = persistence.RoleAdmin
)

// Booking statuses and the list filter value selecting both.
const (
	StatusConfirmed = persistence.BookingStatusConfirmed
	StatusCancelled = persistence.BookingStatusCancelled
	StatusAll       = "ALL"
)

// Audit actions.
const (
	ActionBookingCreated   = "BOOKING_CREATED"
	ActionBookingUpdated   = "BOOKING_UPDATED"
	ActionBookingCancelled = "BOOKING_CANCELLED"
	ActionRoomCreated      = "ROOM_CREATED"
	ActionRoomDeactivated  = "ROOM_DEACTIVATED"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// ClientMeta describes the client a session was issued to.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// User is the public view of an account. It never carries the password hash.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Room represents a bookable meeting room.
type Room struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomSummary is the room information embedded in a booking.
type RoomSummary struct {
	ID       string
	Name     string
	Location string
}

// UserSummary is the owner information embedded in a booking.
type UserSummary struct {
	ID    string
	Name  string
	Email string
}

// Booking represents a room reservation over [StartAt, EndAt).
type Booking struct {
	ID                   string
	RoomID               string
	UserID               string
	Title                string
	StartAt              time.Time
	EndAt                time.Time
	Status               string
	ParticipantIDs       []string
	ExternalParticipants []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Room                 RoomSummary
	Owner                UserSummary
}

// PageMeta describes a page of results.
type PageMeta struct {
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// BookingPage is one page of bookings.
type BookingPage struct {
	Items []Booking
	Meta  PageMeta
}

// RoomPage is one page of rooms.
type RoomPage struct {
	Items []Room
	Meta  PageMeta
}

// AuditEntry is one recorded mutation.
type AuditEntry struct {
	ID         string
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// AuditPage is one page of audit entries.
type AuditPage struct {
	Items []AuditEntry
	Meta  PageMeta
}

// RegisterParams carries a self-registration request.
type RegisterParams struct {
	Email    string
	Password string
	Name     string
}

// LoginParams carries a login request.
type LoginParams struct {
	Email    string
	Password string
	Client   ClientMeta
}

// AuthResult is returned by Login and Refresh.
type AuthResult struct {
	User             User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// CreateBookingParams carries a booking request.
type CreateBookingParams struct {
	Principal            Principal
	RoomID               string
	Title                string
	StartAt              time.Time
	EndAt                time.Time
	ParticipantIDs       []string
	ExternalParticipants []string
}

// UpdateBookingParams carries a partial booking update. Nil fields are left unchanged.
type UpdateBookingParams struct {
	Principal            Principal
	BookingID            string
	Title                *string
	StartAt              *time.Time
	EndAt                *time.Time
	ParticipantIDs       *[]string
	ExternalParticipants *[]string
}

// ListBookingsParams filters a booking listing. Status defaults to CONFIRMED.
type ListBookingsParams struct {
	RoomID string
	UserID string
	From   *time.Time
	To     *time.Time
	Status string
	Page   int
	Limit  int
}

// CreateRoomParams carries a room creation request.
type CreateRoomParams struct {
	Principal Principal
	Name      string
	Location  string
	Capacity  int
}

// ListRoomsParams filters a room listing.
type ListRoomsParams struct {
	Principal       Principal
	IncludeInactive bool
	Page            int
	Limit           int
}

// ListAuditParams filters an audit listing.
type ListAuditParams struct {
	Principal  Principal
	EntityType string
	EntityID   string
	Page       int
	Limit      int
}

func toUser(u persistence.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toRoom(r persistence.Room) Room {
	return Room{
		ID:        r.ID,
		Name:      r.Name,
		Location:  r.Location,
		Capacity:  r.Capacity,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toBooking(b persistence.Booking) Booking {
	return Booking{
		ID:                   b.ID,
		RoomID:               b.RoomID,
		UserID:               b.UserID,
		Title:                b.Title,
		StartAt:              b.StartAt,
		EndAt:                b.EndAt,
		Status:               b.Status,
		ParticipantIDs:       cloneStrings(b.ParticipantIDs),
		ExternalParticipants: cloneStrings(b.ExternalParticipants),
		CreatedAt:            b.CreatedAt,
		UpdatedAt:            b.UpdatedAt,
		Room:                 RoomSummary{ID: b.RoomID, Name: b.RoomName, Location: b.RoomLocation},
		Owner:                UserSummary{ID: b.UserID, Name: b.UserName, Email: b.UserEmail},
	}
}

func toAuditEntry(e persistence.AuditEntry) AuditEntry {
	return AuditEntry{
		ID:         e.ID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		UserID:     e.UserID,
		Metadata:   e.Metadata,
		CreatedAt:  e.CreatedAt,
	}
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
