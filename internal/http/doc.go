// Package http exposes the booking API over chi.
//
// All API routes live under /api/v1 and answer with {"data": ..., "meta": ...}
// on success and {"error_code", "message", "errors"} on failure:
//   - POST /auth/register, /auth/login: rate limited per client IP. Login sets
//     the access_token and refresh_token HttpOnly cookies and returns the access
//     token in the body.
//   - POST /auth/refresh, /auth/logout: read the refresh_token cookie. Refresh
//     rotates both cookies.
//   - POST /auth/logout-all, GET /users/me: require an access token.
//   - GET /rooms, GET /rooms/{id}; POST /rooms and DELETE /rooms/{id} for admins.
//   - POST /bookings, GET /bookings, GET /bookings/my,
//     GET /bookings/room/{roomId}?date=YYYY-MM-DD, GET|PUT|DELETE /bookings/{id}.
//   - GET /audit-logs for admins.
//
// GET /health and GET /metrics sit outside the prefix and need no token.
// Access tokens are accepted from an "Authorization: Bearer" header or the
// access_token cookie.
package http
