package scheduler

import (
	"errors"
	"time"
)

// ErrInvalidInterval is returned when an interval does not end strictly after it starts.
var ErrInvalidInterval = errors.New("scheduler: interval must end after it starts")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Validate reports whether the interval is usable for overlap checks.
func (i Interval) Validate() error {
	if i.Start.IsZero() || i.End.IsZero() || !i.Start.Before(i.End) {
		return ErrInvalidInterval
	}
	return nil
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and [bStart, bEnd)
// share any instant. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Overlaps reports whether the receiver overlaps other.
func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i.Start, i.End, other.Start, other.End)
}

// Reservation is a room-scoped interval held by a booking.
type Reservation struct {
	ID     string
	RoomID string
	Interval
}

// Conflict pairs a candidate with an existing reservation it collides with.
type Conflict struct {
	WithID string
	RoomID string
}

// DetectConflicts returns the existing reservations in the candidate's room that
// overlap the candidate. An existing entry with the candidate's own ID is skipped
// so that a reservation can be moved without colliding with its prior state.
func DetectConflicts(existing []Reservation, candidate Reservation) []Conflict {
	var conflicts []Conflict
	for _, r := range existing {
		if r.RoomID != candidate.RoomID {
			continue
		}
		if candidate.ID != "" && r.ID == candidate.ID {
			continue
		}
		if r.Overlaps(candidate.Interval) {
			conflicts = append(conflicts, Conflict{WithID: r.ID, RoomID: r.RoomID})
		}
	}
	return conflicts
}

// DaysSpanned returns the local midnight of every calendar day the interval
// touches in loc. An interval ending exactly at midnight does not touch the
// following day.
func DaysSpanned(i Interval, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if !i.Start.Before(i.End) {
		return nil
	}
	day := StartOfDay(i.Start, loc)
	var days []time.Time
	for day.Before(i.End) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
