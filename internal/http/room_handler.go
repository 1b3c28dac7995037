package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/room-booking/internal/application"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	GetRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error)
	ListRooms(ctx context.Context, params application.ListRoomsParams) (application.RoomPage, error)
	DeactivateRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error)
}

type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

type createRoomRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Location string `json:"location" validate:"max=200"`
	Capacity int    `json:"capacity" validate:"required,gte=1,lte=100"`
}

// List handles GET /rooms.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := newQueryReader(r)
	params := application.ListRoomsParams{
		Principal:       principalOrAnonymous(ctx),
		IncludeInactive: q.Bool("includeInactive"),
		Page:            q.Int("page"),
		Limit:           q.Int("limit"),
	}
	if err := q.Err(); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	page, err := h.service.ListRooms(ctx, params)
	if err != nil {
		h.log(ctx, "List").ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writePage(ctx, w, toRoomDTOs(page.Items), page.Meta)
}

// Get handles GET /rooms/{id}.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	room, err := h.service.GetRoom(ctx, principalOrAnonymous(ctx), id)
	if err != nil {
		h.log(ctx, "Get", "room_id", id).WarnContext(ctx, "failed to load room", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusOK, toRoomDTO(room))
}

// Create handles POST /rooms.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	principal := principalOrAnonymous(ctx)
	logger := h.log(ctx, "Create", "principal_id", principal.UserID)

	room, err := h.service.CreateRoom(ctx, application.CreateRoomParams{
		Principal: principal,
		Name:      req.Name,
		Location:  req.Location,
		Capacity:  req.Capacity,
	})
	if err != nil {
		logger.WarnContext(ctx, "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusCreated, toRoomDTO(room))
}

// Deactivate handles DELETE /rooms/{id}. Rooms are never removed, only
// hidden from future bookings.
func (h *RoomHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	principal := principalOrAnonymous(ctx)

	room, err := h.service.DeactivateRoom(ctx, principal, id)
	if err != nil {
		h.log(ctx, "Deactivate", "room_id", id, "principal_id", principal.UserID).WarnContext(ctx, "room deactivation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeData(ctx, w, http.StatusOK, toRoomDTO(room))
}
