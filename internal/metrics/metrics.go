// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route pattern, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// BookingOperations counts booking mutations by operation and outcome.
	BookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Booking operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_auth_events_total",
			Help: "Authentication events by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	DayViewCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_day_view_cache_total",
			Help: "Room day view cache lookups by result",
		},
		[]string{"result"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	SessionsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_sessions_purged_total",
			Help: "Expired refresh sessions deleted",
		},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Outcome maps an error to a success or failure label, or to kind when the
// error is non-nil and kind is set.
func Outcome(err error, kind string) string {
	if err == nil {
		return OutcomeSuccess
	}
	if kind != "" {
		return kind
	}
	return OutcomeFailure
}
