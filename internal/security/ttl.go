package security

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidTTL is returned when a TTL string does not match the duration grammar.
var ErrInvalidTTL = errors.New("invalid ttl")

var ttlPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d|w|y)$`)

var ttlUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
	"y":  8766 * time.Hour, // 365.25 days
}

// ParseTTL parses a token lifetime such as "15m", "7d" or "1y".
// The grammar is digits followed by one of ms, s, m, h, d, w, y; a year is 365.25 days.
// Zero and overflowing values are rejected.
func ParseTTL(s string) (time.Duration, error) {
	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q (use e.g. 15m, 7d, 1h)", ErrInvalidTTL, s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, s)
	}
	unit := ttlUnits[m[2]]
	if n <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidTTL, s)
	}
	if n > int64(time.Duration(1<<63-1)/unit) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidTTL, s)
	}
	return time.Duration(n) * unit, nil
}
