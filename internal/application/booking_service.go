package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/room-booking/internal/cache"
	"github.com/example/room-booking/internal/metrics"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// Pagination defaults shared by every listing.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

const (
	maxTitleLength = 200
	dayLayout      = "2006-01-02"
)

// BookingPolicy bounds booking windows. A zero field disables that rule.
type BookingPolicy struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	MaxAdvance  time.Duration
}

// DefaultBookingPolicy returns the standard limits: 15 minutes to 8 hours,
// starting at most 30 days ahead.
func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{
		MinDuration: 15 * time.Minute,
		MaxDuration: 8 * time.Hour,
		MaxAdvance:  30 * 24 * time.Hour,
	}
}

// BookingServiceConfig holds the optional collaborators of BookingService.
type BookingServiceConfig struct {
	Policy BookingPolicy
	// Location decides calendar day boundaries for the room day view.
	Location *time.Location
	// DayViewCache stores rendered day views. Nil disables caching.
	DayViewCache cache.Store
	DayViewTTL   time.Duration
}

// BookingService coordinates reservations, their audit trail, and the day view cache.
type BookingService struct {
	store       persistence.Store
	policy      BookingPolicy
	location    *time.Location
	dayCache    cache.Store
	dayTTL      time.Duration
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(store persistence.Store, cfg BookingServiceConfig, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(store, cfg, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(store persistence.Store, cfg BookingServiceConfig, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	ttl := cfg.DayViewTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BookingService{
		store:       store,
		policy:      cfg.Policy,
		location:    loc,
		dayCache:    cfg.DayViewCache,
		dayTTL:      ttl,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

func (s *BookingService) ready() error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.store == nil {
		return fmt.Errorf("booking store not configured")
	}
	return nil
}

// CreateBooking reserves a room for the principal.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		metrics.BookingOperations.WithLabelValues("create", metrics.Outcome(err, ErrorKind(err))).Inc()
		logOutcome(ctx, logger, err, "failed to create booking", "booking created", "booking_id", booking.ID)
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	now := s.now().UTC()
	draft := persistence.Booking{
		ID:                   s.idGenerator(),
		RoomID:               strings.TrimSpace(params.RoomID),
		UserID:               params.Principal.UserID,
		Title:                strings.TrimSpace(params.Title),
		StartAt:              params.StartAt.UTC(),
		EndAt:                params.EndAt.UTC(),
		Status:               StatusConfirmed,
		ParticipantIDs:       trimAll(params.ParticipantIDs),
		ExternalParticipants: trimAll(params.ExternalParticipants),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	vErr := s.validateBooking(draft, now)
	if draft.RoomID == "" {
		vErr.add("roomId", "room is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var created persistence.Booking
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		room, err := repos.Rooms.GetRoom(ctx, draft.RoomID)
		if err != nil {
			return mapRoomRepoError(err)
		}
		if !room.IsActive {
			return newConflict(CodeRoomInactive, "room is not active")
		}
		if err := checkParticipants(ctx, repos.Users, draft.ParticipantIDs); err != nil {
			return err
		}
		if err := checkAvailability(ctx, repos.Bookings, draft); err != nil {
			return err
		}

		if err := repos.Bookings.CreateBooking(ctx, draft); err != nil {
			return mapBookingRepoError(err)
		}

		if err := repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID:         s.idGenerator(),
			Action:     ActionBookingCreated,
			EntityType: persistence.EntityBooking,
			EntityID:   draft.ID,
			UserID:     draft.UserID,
			Metadata: map[string]any{
				"roomId":   room.ID,
				"roomName": room.Name,
				"startAt":  draft.StartAt.Format(time.RFC3339),
				"endAt":    draft.EndAt.Format(time.RFC3339),
			},
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		created, err = repos.Bookings.GetBooking(ctx, draft.ID)
		if err != nil {
			return mapBookingRepoError(err)
		}
		return nil
	})
	if err != nil {
		return
	}

	s.invalidateDays(ctx, logger, created.RoomID, intervalOf(created))
	booking = toBooking(created)
	return
}

// UpdateBooking applies a partial change to a confirmed booking owned by the principal.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		metrics.BookingOperations.WithLabelValues("update", metrics.Outcome(err, ErrorKind(err))).Inc()
		logOutcome(ctx, logger, err, "failed to update booking", "booking updated")
	}()

	now := s.now().UTC()
	var before, after persistence.Booking
	var changed bool
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		existing, err := repos.Bookings.GetBooking(ctx, params.BookingID)
		if err != nil {
			return mapBookingRepoError(err)
		}
		if existing.UserID != params.Principal.UserID {
			return ErrForbidden
		}
		if existing.Status == StatusCancelled {
			return newConflict(CodeBookingCancelled, "cancelled bookings cannot be modified")
		}

		merged, changes := applyBookingPatch(existing, params)
		if len(changes) == 0 {
			before, after = existing, existing
			return nil
		}
		merged.UpdatedAt = now

		vErr := s.validateBooking(merged, now)
		if _, moved := changes["startAt"]; !moved {
			if _, moved = changes["endAt"]; !moved {
				// The advance window only applies to a new time range.
				delete(vErr.FieldErrors, "startAt")
			}
		}
		if vErr.HasErrors() {
			return vErr
		}
		if params.ParticipantIDs != nil {
			if err := checkParticipants(ctx, repos.Users, merged.ParticipantIDs); err != nil {
				return err
			}
		}
		if !merged.StartAt.Equal(existing.StartAt) || !merged.EndAt.Equal(existing.EndAt) {
			if err := checkAvailability(ctx, repos.Bookings, merged); err != nil {
				return err
			}
		}

		if err := repos.Bookings.UpdateBooking(ctx, merged); err != nil {
			return mapBookingRepoError(err)
		}

		if err := repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID:         s.idGenerator(),
			Action:     ActionBookingUpdated,
			EntityType: persistence.EntityBooking,
			EntityID:   existing.ID,
			UserID:     params.Principal.UserID,
			Metadata:   map[string]any{"changes": changes},
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		updated, err := repos.Bookings.GetBooking(ctx, existing.ID)
		if err != nil {
			return mapBookingRepoError(err)
		}
		before, after, changed = existing, updated, true
		return nil
	})
	if err != nil {
		return
	}

	if changed {
		s.invalidateDays(ctx, logger, before.RoomID, intervalOf(before))
		if !before.StartAt.Equal(after.StartAt) || !before.EndAt.Equal(after.EndAt) {
			s.invalidateDays(ctx, logger, after.RoomID, intervalOf(after))
		}
	}
	booking = toBooking(after)
	return
}

// CancelBooking marks a booking owned by the principal as cancelled.
// Cancelling twice is a conflict.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		metrics.BookingOperations.WithLabelValues("cancel", metrics.Outcome(err, ErrorKind(err))).Inc()
		logOutcome(ctx, logger, err, "failed to cancel booking", "booking cancelled")
	}()

	now := s.now().UTC()
	var cancelled persistence.Booking
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		existing, err := repos.Bookings.GetBooking(ctx, bookingID)
		if err != nil {
			return mapBookingRepoError(err)
		}
		if existing.UserID != principal.UserID {
			return ErrForbidden
		}
		if existing.Status == StatusCancelled {
			return newConflict(CodeBookingCancelled, "booking is already cancelled")
		}

		existing.Status = StatusCancelled
		existing.UpdatedAt = now
		if err := repos.Bookings.UpdateBooking(ctx, existing); err != nil {
			return mapBookingRepoError(err)
		}

		if err := repos.Audit.AppendAudit(ctx, persistence.AuditEntry{
			ID:         s.idGenerator(),
			Action:     ActionBookingCancelled,
			EntityType: persistence.EntityBooking,
			EntityID:   existing.ID,
			UserID:     principal.UserID,
			Metadata: map[string]any{
				"roomId":  existing.RoomID,
				"startAt": existing.StartAt.Format(time.RFC3339),
				"endAt":   existing.EndAt.Format(time.RFC3339),
			},
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		cancelled = existing
		return nil
	})
	if err != nil {
		return
	}

	s.invalidateDays(ctx, logger, cancelled.RoomID, intervalOf(cancelled))
	booking = toBooking(cancelled)
	return
}

// GetBooking returns one booking by id.
func (s *BookingService) GetBooking(ctx context.Context, id string) (Booking, error) {
	if err := s.ready(); err != nil {
		return Booking{}, err
	}
	record, err := s.store.Repositories().Bookings.GetBooking(ctx, strings.TrimSpace(id))
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	return toBooking(record), nil
}

// ListBookings returns a page of bookings ordered by start time.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (page BookingPage, err error) {
	if err = s.ready(); err != nil {
		return
	}

	var statuses []string
	switch strings.ToUpper(strings.TrimSpace(params.Status)) {
	case "", StatusConfirmed:
		statuses = []string{StatusConfirmed}
	case StatusCancelled:
		statuses = []string{StatusCancelled}
	case StatusAll:
		statuses = nil
	default:
		err = NewValidationError("status", "status must be CONFIRMED, CANCELLED, or ALL")
		return
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		err = NewValidationError("endDate", "endDate must not be before startDate")
		return
	}

	pageNum, limit := normalizePage(params.Page, params.Limit)
	filter := persistence.BookingFilter{
		RoomID:   strings.TrimSpace(params.RoomID),
		UserID:   strings.TrimSpace(params.UserID),
		Statuses: statuses,
		Offset:   (pageNum - 1) * limit,
		Limit:    limit,
	}
	if params.From != nil {
		from := params.From.UTC()
		filter.StartsFrom = &from
	}
	if params.To != nil {
		to := params.To.UTC()
		filter.EndsBefore = &to
	}

	records, total, listErr := s.store.Repositories().Bookings.ListBookings(ctx, filter)
	if listErr != nil {
		err = fmt.Errorf("list bookings: %w", listErr)
		return
	}

	page.Items = make([]Booking, 0, len(records))
	for _, r := range records {
		page.Items = append(page.Items, toBooking(r))
	}
	page.Meta = pageMeta(total, pageNum, limit)
	return
}

// ListMyBookings lists the principal's confirmed bookings.
func (s *BookingService) ListMyBookings(ctx context.Context, principal Principal, page, limit int) (BookingPage, error) {
	if principal.UserID == "" {
		return BookingPage{}, ErrUnauthorized
	}
	return s.ListBookings(ctx, ListBookingsParams{UserID: principal.UserID, Page: page, Limit: limit})
}

// RoomDayView returns the confirmed bookings of a room that lie entirely
// within the calendar day date (YYYY-MM-DD) in the configured location.
func (s *BookingService) RoomDayView(ctx context.Context, roomID, date string) (bookings []Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	roomID = strings.TrimSpace(roomID)
	day, parseErr := time.ParseInLocation(dayLayout, strings.TrimSpace(date), s.location)
	if parseErr != nil {
		err = NewValidationError("date", "date must be formatted as YYYY-MM-DD")
		return
	}

	key := dayViewKey(roomID, day)
	if cached, ok := s.cachedDay(ctx, key); ok {
		bookings = cached
		return
	}

	repos := s.store.Repositories()
	if _, getErr := repos.Rooms.GetRoom(ctx, roomID); getErr != nil {
		err = mapRoomRepoError(getErr)
		return
	}

	start := day.UTC()
	end := day.AddDate(0, 0, 1).UTC()
	records, _, listErr := repos.Bookings.ListBookings(ctx, persistence.BookingFilter{
		RoomID:     roomID,
		Statuses:   []string{StatusConfirmed},
		StartsFrom: &start,
		EndsBefore: &end,
	})
	if listErr != nil {
		err = fmt.Errorf("list room bookings: %w", listErr)
		return
	}

	bookings = make([]Booking, 0, len(records))
	for _, r := range records {
		bookings = append(bookings, toBooking(r))
	}
	s.storeDay(ctx, key, bookings)
	return
}

func (s *BookingService) cachedDay(ctx context.Context, key string) ([]Booking, bool) {
	if s.dayCache == nil {
		return nil, false
	}
	raw, ok, err := s.dayCache.Get(ctx, key)
	if err != nil {
		s.loggerWith(ctx, "RoomDayView").WarnContext(ctx, "day view cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		metrics.DayViewCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	var bookings []Booking
	if err := json.Unmarshal(raw, &bookings); err != nil {
		metrics.DayViewCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.DayViewCache.WithLabelValues("hit").Inc()
	return bookings, true
}

func (s *BookingService) storeDay(ctx context.Context, key string, bookings []Booking) {
	if s.dayCache == nil {
		return
	}
	raw, err := json.Marshal(bookings)
	if err != nil {
		return
	}
	if err := s.dayCache.Set(ctx, key, raw, s.dayTTL); err != nil {
		s.loggerWith(ctx, "RoomDayView").WarnContext(ctx, "day view cache write failed", "error", err)
	}
}

// invalidateDays drops every cached day view the interval touches. Failures
// are logged; cached entries still expire after the TTL.
func (s *BookingService) invalidateDays(ctx context.Context, logger *slog.Logger, roomID string, interval scheduler.Interval) {
	if s.dayCache == nil {
		return
	}
	days := scheduler.DaysSpanned(interval, s.location)
	if len(days) == 0 {
		return
	}
	keys := make([]string, 0, len(days))
	for _, day := range days {
		keys = append(keys, dayViewKey(roomID, day))
	}
	if err := s.dayCache.Delete(ctx, keys...); err != nil {
		logger.WarnContext(ctx, "day view cache invalidation failed", "error", err, "keys", keys)
	}
}

func dayViewKey(roomID string, day time.Time) string {
	return "dayview:" + roomID + ":" + day.Format(dayLayout)
}

func (s *BookingService) validateBooking(b persistence.Booking, now time.Time) *ValidationError {
	vErr := &ValidationError{}

	if n := utf8.RuneCountInString(b.Title); n == 0 {
		vErr.add("title", "title is required")
	} else if n > maxTitleLength {
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	interval := intervalOf(b)
	if b.StartAt.IsZero() {
		vErr.add("startAt", "start time is required")
	}
	if b.EndAt.IsZero() {
		vErr.add("endAt", "end time is required")
	}
	if !vErr.HasField("startAt") && !vErr.HasField("endAt") {
		if interval.Validate() != nil {
			vErr.add("endAt", "end time must be after start time")
		} else {
			d := interval.Duration()
			if s.policy.MinDuration > 0 && d < s.policy.MinDuration {
				vErr.add("endAt", fmt.Sprintf("booking must last at least %s", s.policy.MinDuration))
			}
			if s.policy.MaxDuration > 0 && d > s.policy.MaxDuration {
				vErr.add("endAt", fmt.Sprintf("booking must last at most %s", s.policy.MaxDuration))
			}
			if s.policy.MaxAdvance > 0 && b.StartAt.After(now.Add(s.policy.MaxAdvance)) {
				vErr.add("startAt", fmt.Sprintf("booking may start at most %s ahead", s.policy.MaxAdvance))
			}
		}
	}

	if dup := firstDuplicate(b.ParticipantIDs); dup != "" {
		vErr.add("participantIds", fmt.Sprintf("participant %q is listed twice", dup))
	}
	for _, name := range b.ExternalParticipants {
		if name == "" {
			vErr.add("externalParticipants", "external participant names must not be blank")
			break
		}
	}
	if dup := firstDuplicate(b.ExternalParticipants); dup != "" {
		vErr.add("externalParticipants", fmt.Sprintf("external participant %q is listed twice", dup))
	}
	return vErr
}

func checkParticipants(ctx context.Context, users persistence.UserRepository, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := users.ListUsersByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	known := make(map[string]struct{}, len(found))
	for _, u := range found {
		known[u.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return NewValidationError("participantIds", fmt.Sprintf("participant %q does not exist", id))
		}
	}
	return nil
}

func applyBookingPatch(existing persistence.Booking, params UpdateBookingParams) (persistence.Booking, map[string]any) {
	merged := existing
	changes := make(map[string]any)
	if params.Title != nil {
		merged.Title = strings.TrimSpace(*params.Title)
		if merged.Title != existing.Title {
			changes["title"] = merged.Title
		}
	}
	if params.StartAt != nil {
		merged.StartAt = params.StartAt.UTC()
		if !merged.StartAt.Equal(existing.StartAt) {
			changes["startAt"] = merged.StartAt.Format(time.RFC3339)
		}
	}
	if params.EndAt != nil {
		merged.EndAt = params.EndAt.UTC()
		if !merged.EndAt.Equal(existing.EndAt) {
			changes["endAt"] = merged.EndAt.Format(time.RFC3339)
		}
	}
	if params.ParticipantIDs != nil {
		merged.ParticipantIDs = trimAll(*params.ParticipantIDs)
		changes["participantIds"] = merged.ParticipantIDs
	}
	if params.ExternalParticipants != nil {
		merged.ExternalParticipants = trimAll(*params.ExternalParticipants)
		changes["externalParticipants"] = merged.ExternalParticipants
	}
	return merged, changes
}

func mapBookingRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrOverlap):
		return newConflict(CodeBookingConflict, "the room is already booked for that time")
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		return NewValidationError("endAt", "booking violates a storage constraint")
	}
	var vErr *ValidationError
	var cErr *ConflictError
	if errors.As(err, &vErr) || errors.As(err, &cErr) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("booking storage: %w", err)
}

// checkAvailability rejects a booking whose window overlaps another confirmed
// booking of the same room. The storage constraint still guards concurrent
// writers that pass this check together.
func checkAvailability(ctx context.Context, bookings persistence.BookingRepository, candidate persistence.Booking) error {
	start, end := candidate.StartAt, candidate.EndAt
	nearby, _, err := bookings.ListBookings(ctx, persistence.BookingFilter{
		RoomID:       candidate.RoomID,
		Statuses:     []string{StatusConfirmed},
		StartsBefore: &end,
		EndsAfter:    &start,
	})
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}

	existing := make([]scheduler.Reservation, 0, len(nearby))
	for _, b := range nearby {
		existing = append(existing, reservationOf(b))
	}
	if conflicts := scheduler.DetectConflicts(existing, reservationOf(candidate)); len(conflicts) > 0 {
		return newConflict(CodeBookingConflict, "the room is already booked for that time")
	}
	return nil
}

func reservationOf(b persistence.Booking) scheduler.Reservation {
	return scheduler.Reservation{ID: b.ID, RoomID: b.RoomID, Interval: intervalOf(b)}
}

func intervalOf(b persistence.Booking) scheduler.Interval {
	return scheduler.Interval{Start: b.StartAt, End: b.EndAt}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	return page, persistence.NormalizeLimit(limit, DefaultLimit, MaxLimit)
}

func pageMeta(total, page, limit int) PageMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return PageMeta{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func firstDuplicate(values []string) string {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			return v
		}
		seen[v] = struct{}{}
	}
	return ""
}
