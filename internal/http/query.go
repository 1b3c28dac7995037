package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
)

// queryReader collects query parameter parse failures so a handler can report
// them together.
type queryReader struct {
	r      *http.Request
	errors map[string]string
}

func newQueryReader(r *http.Request) *queryReader {
	return &queryReader{r: r}
}

func (q *queryReader) fail(field, message string) {
	if q.errors == nil {
		q.errors = make(map[string]string)
	}
	q.errors[field] = message
}

func (q *queryReader) String(name string) string {
	return strings.TrimSpace(q.r.URL.Query().Get(name))
}

// Int returns 0 when the parameter is absent.
func (q *queryReader) Int(name string) int {
	raw := q.String(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, name+" must be an integer")
		return 0
	}
	return n
}

func (q *queryReader) Bool(name string) bool {
	raw := q.String(name)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, name+" must be true or false")
		return false
	}
	return v
}

// Time accepts RFC 3339 timestamps or YYYY-MM-DD dates, the latter read as
// midnight UTC.
func (q *queryReader) Time(name string) *time.Time {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	q.fail(name, name+" must be an RFC 3339 timestamp or YYYY-MM-DD date")
	return nil
}

// Err returns the collected failures as a validation error, or nil.
func (q *queryReader) Err() error {
	if len(q.errors) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: q.errors}
}
