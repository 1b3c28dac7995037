package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var expiryPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseExpiry converts a duration string such as "15m" or "14d" into a duration.
// Only a positive integer followed by one of s, m, h, or d is accepted.
func ParseExpiry(raw string) (time.Duration, error) {
	match := expiryPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, fmt.Errorf("auth: invalid expiry %q: expected <integer><s|m|h|d>", raw)
	}

	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("auth: invalid expiry %q: %w", raw, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("auth: invalid expiry %q: must be positive", raw)
	}

	var unit time.Duration
	switch match[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	if value > int64(maxDuration/unit) {
		return 0, fmt.Errorf("auth: invalid expiry %q: too large", raw)
	}
	return time.Duration(value) * unit, nil
}

const maxDuration = time.Duration(1<<63 - 1)
