package persistence

import "time"

// Roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Booking statuses.
const (
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"
)

// Audit entity types.
const (
	EntityBooking = "Booking"
	EntityRoom    = "Room"
)

// User represents an account able to authenticate and book rooms.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
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

// Booking represents a reservation of a room for a half-open time window.
//
// RoomName, RoomLocation, UserName, and UserEmail are populated on reads only.
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

	RoomName     string
	RoomLocation string
	UserName     string
	UserEmail    string
}

// Session is one issued refresh credential, stored by digest only.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UserAgent string
	IPAddress string
	CreatedAt time.Time
}

// AuditEntry records one committed mutation.
type AuditEntry struct {
	ID         string
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	Metadata   map[string]any
	CreatedAt  time.Time
}
