package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/room-booking/internal/application"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	GetBooking(ctx context.Context, id string) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) (application.BookingPage, error)
	ListMyBookings(ctx context.Context, principal application.Principal, page, limit int) (application.BookingPage, error)
	RoomDayView(ctx context.Context, roomID, date string) ([]application.Booking, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

type createBookingRequest struct {
	RoomID               string    `json:"roomId" validate:"required"`
	Title                string    `json:"title" validate:"required,max=200"`
	StartAt              time.Time `json:"startAt" validate:"required"`
	EndAt                time.Time `json:"endAt" validate:"required"`
	ParticipantIDs       []string  `json:"participantIds" validate:"omitempty,max=50,dive,required"`
	ExternalParticipants []string  `json:"externalParticipants" validate:"omitempty,max=50,dive,required,max=100"`
}

type updateBookingRequest struct {
	Title                *string    `json:"title" validate:"omitempty,max=200"`
	StartAt              *time.Time `json:"startAt"`
	EndAt                *time.Time `json:"endAt"`
	ParticipantIDs       *[]string  `json:"participantIds"`
	ExternalParticipants *[]string  `json:"externalParticipants"`
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	principal := principalOrAnonymous(ctx)
	logger := h.log(ctx, "Create", "principal_id", principal.UserID, "room_id", req.RoomID)

	booking, err := h.service.CreateBooking(ctx, application.CreateBookingParams{
		Principal:            principal,
		RoomID:               req.RoomID,
		Title:                req.Title,
		StartAt:              req.StartAt,
		EndAt:                req.EndAt,
		ParticipantIDs:       req.ParticipantIDs,
		ExternalParticipants: req.ExternalParticipants,
	})
	if err != nil {
		logger.WarnContext(ctx, "booking creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusCreated, toBookingDTO(booking))
}

// List handles GET /bookings.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := newQueryReader(r)
	params := application.ListBookingsParams{
		RoomID: q.String("roomId"),
		UserID: q.String("userId"),
		From:   q.Time("startDate"),
		To:     q.Time("endDate"),
		Status: q.String("status"),
		Page:   q.Int("page"),
		Limit:  q.Int("limit"),
	}
	if err := q.Err(); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	page, err := h.service.ListBookings(ctx, params)
	if err != nil {
		h.log(ctx, "List").WarnContext(ctx, "failed to list bookings", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writePage(ctx, w, toBookingDTOs(page.Items), page.Meta)
}

// Mine handles GET /bookings/my.
func (h *BookingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := newQueryReader(r)
	pageNum, limit := q.Int("page"), q.Int("limit")
	if err := q.Err(); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	page, err := h.service.ListMyBookings(ctx, principalOrAnonymous(ctx), pageNum, limit)
	if err != nil {
		h.log(ctx, "Mine").WarnContext(ctx, "failed to list own bookings", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writePage(ctx, w, toBookingDTOs(page.Items), page.Meta)
}

// RoomDay handles GET /bookings/room/{roomId}?date=YYYY-MM-DD.
func (h *BookingHandler) RoomDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := chi.URLParam(r, "roomId")
	date := newQueryReader(r).String("date")

	bookings, err := h.service.RoomDayView(ctx, roomID, date)
	if err != nil {
		h.log(ctx, "RoomDay", "room_id", roomID, "date", date).WarnContext(ctx, "failed to load room day", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusOK, toBookingDTOs(bookings))
}

// Get handles GET /bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	booking, err := h.service.GetBooking(ctx, id)
	if err != nil {
		h.log(ctx, "Get", "booking_id", id).WarnContext(ctx, "failed to load booking", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusOK, toBookingDTO(booking))
}

// Update handles PUT /bookings/{id}. Omitted fields are left unchanged.
func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateBookingRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	principal := principalOrAnonymous(ctx)

	booking, err := h.service.UpdateBooking(ctx, application.UpdateBookingParams{
		Principal:            principal,
		BookingID:            id,
		Title:                req.Title,
		StartAt:              req.StartAt,
		EndAt:                req.EndAt,
		ParticipantIDs:       req.ParticipantIDs,
		ExternalParticipants: req.ExternalParticipants,
	})
	if err != nil {
		h.log(ctx, "Update", "booking_id", id, "principal_id", principal.UserID).WarnContext(ctx, "booking update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusOK, toBookingDTO(booking))
}

// Cancel handles DELETE /bookings/{id}.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	principal := principalOrAnonymous(ctx)

	booking, err := h.service.CancelBooking(ctx, principal, id)
	if err != nil {
		h.log(ctx, "Cancel", "booking_id", id, "principal_id", principal.UserID).WarnContext(ctx, "booking cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusOK, toBookingDTO(booking))
}
