package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	t.Parallel()

	valid := map[string]time.Duration{
		"30s": 30 * time.Second,
		"15m": 15 * time.Minute,
		"12h": 12 * time.Hour,
		"14d": 14 * 24 * time.Hour,
		"1d":  24 * time.Hour,
	}
	for value, want := range valid {
		got, err := ParseExpiry(value)
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}

	invalid := []string{"", "15", "m", "15x", "1.5h", "-1d", "0m", " 15m", "15m ", "2w", "15M", "99999999999999999999d"}
	for _, value := range invalid {
		_, err := ParseExpiry(value)
		assert.Error(t, err, "expected %q to be rejected", value)
	}
}
