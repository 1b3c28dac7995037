package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process uptime and dependency reachability.
type HealthHandler struct {
	checks    map[string]Pinger
	started   time.Time
	now       func() time.Time
	timeout   time.Duration
	responder responder
	logger    *slog.Logger
}

// NewHealthHandler builds a handler probing each named dependency.
func NewHealthHandler(checks map[string]Pinger, now func() time.Time, logger *slog.Logger) *HealthHandler {
	if now == nil {
		now = time.Now
	}
	base := defaultLogger(logger)
	return &HealthHandler{
		checks:    checks,
		started:   now(),
		now:       now,
		timeout:   2 * time.Second,
		responder: newResponder(base),
		logger:    base,
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Uptime    float64           `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health handles GET /health. A failing dependency degrades the status but
// the endpoint itself still answers 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{
		Status: "ok",
		Checks: make(map[string]string, len(h.checks)),
	}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			handlerLogger(ctx, h.logger, "HealthHandler", "Health", "check", name).WarnContext(ctx, "health check failed", "error", err)
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "up"
	}

	now := h.now()
	resp.Uptime = now.Sub(h.started).Seconds()
	resp.Timestamp = now.UTC()
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}
