package persistence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/room-booking/internal/persistence"
)

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: 20},
		{name: "negative uses default", limit: -5, want: 20},
		{name: "within range", limit: 7, want: 7},
		{name: "at maximum", limit: 100, want: 100},
		{name: "above maximum is clamped", limit: 500, want: 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, persistence.NormalizeLimit(tc.limit, 20, 100))
		})
	}
}
