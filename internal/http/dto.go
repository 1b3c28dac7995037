package http

import (
	"time"

	"github.com/example/room-booking/internal/application"
)

type pageMetaDTO struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func toPageMetaDTO(meta application.PageMeta) pageMetaDTO {
	return pageMetaDTO{
		Total:      meta.Total,
		Page:       meta.Page,
		Limit:      meta.Limit,
		TotalPages: meta.TotalPages,
	}
}

type userDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUserDTO(u application.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

type roomDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Capacity  int       `json:"capacity"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toRoomDTO(r application.Room) roomDTO {
	return roomDTO{
		ID:        r.ID,
		Name:      r.Name,
		Location:  r.Location,
		Capacity:  r.Capacity,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoomDTO(r))
	}
	return out
}

type roomSummaryDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type ownerDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type bookingDTO struct {
	ID                   string         `json:"id"`
	RoomID               string         `json:"roomId"`
	UserID               string         `json:"userId"`
	Title                string         `json:"title"`
	StartAt              time.Time      `json:"startAt"`
	EndAt                time.Time      `json:"endAt"`
	Status               string         `json:"status"`
	ParticipantIDs       []string       `json:"participantIds"`
	ExternalParticipants []string       `json:"externalParticipants"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
	Room                 roomSummaryDTO `json:"room"`
	User                 ownerDTO       `json:"user"`
}

func toBookingDTO(b application.Booking) bookingDTO {
	participants := b.ParticipantIDs
	if participants == nil {
		participants = []string{}
	}
	external := b.ExternalParticipants
	if external == nil {
		external = []string{}
	}
	return bookingDTO{
		ID:                   b.ID,
		RoomID:               b.RoomID,
		UserID:               b.UserID,
		Title:                b.Title,
		StartAt:              b.StartAt.UTC(),
		EndAt:                b.EndAt.UTC(),
		Status:               b.Status,
		ParticipantIDs:       participants,
		ExternalParticipants: external,
		CreatedAt:            b.CreatedAt.UTC(),
		UpdatedAt:            b.UpdatedAt.UTC(),
		Room:                 roomSummaryDTO{ID: b.Room.ID, Name: b.Room.Name, Location: b.Room.Location},
		User:                 ownerDTO{ID: b.Owner.ID, Name: b.Owner.Name, Email: b.Owner.Email},
	}
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	return out
}

type auditEntryDTO struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	UserID     string         `json:"userId"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func toAuditEntryDTOs(entries []application.AuditEntry) []auditEntryDTO {
	out := make([]auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		metadata := e.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		out = append(out, auditEntryDTO{
			ID:         e.ID,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			UserID:     e.UserID,
			Metadata:   metadata,
			CreatedAt:  e.CreatedAt.UTC(),
		})
	}
	return out
}
