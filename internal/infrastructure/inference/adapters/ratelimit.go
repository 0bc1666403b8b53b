package adapters

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultRateLimitCooldown applies when a 429 carries no reset hint.
	DefaultRateLimitCooldown = time.Hour

	// Numeric reset values with at least this many digits are unix timestamps.
	unixTimestampDigits = 10
	unixMillisDigits    = 13
)

// resetHeaders are consulted in priority order. OpenAI's per-bucket refill duration
// only counts when retry-after is absent.
var resetHeaders = []string{
	"x-ratelimit-reset",
	"retry-after",
	"x-ratelimit-reset-requests",
}

// maxDelaySeconds is the largest relative delay a time.Duration can hold.
var maxDelaySeconds = float64(math.MaxInt64 / int64(time.Second))

// ResetAt derives when a rate limit lifts from the response headers, falling back to
// now+cooldown. A result in the past is clamped to now.
func ResetAt(headers http.Header, now time.Time, cooldown time.Duration) time.Time {
	for _, name := range resetHeaders {
		value := strings.TrimSpace(headers.Get(name))
		if value == "" {
			continue
		}
		if reset, ok := parseReset(value, now); ok {
			if reset.Before(now) {
				return now
			}
			return reset
		}
	}
	return now.Add(cooldown)
}

func parseReset(value string, now time.Time) (time.Time, bool) {
	if isDigits(value) {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		switch {
		case len(value) >= unixMillisDigits:
			return time.UnixMilli(n).UTC(), true
		case len(value) >= unixTimestampDigits:
			return time.Unix(n, 0).UTC(), true
		default:
			return now.Add(time.Duration(n) * time.Second), true
		}
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(secs) || secs < 0 || secs > maxDelaySeconds {
			return time.Time{}, false
		}
		return now.Add(time.Duration(secs * float64(time.Second))), true
	}
	// "6m0s" style, as sent by OpenAI.
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(d), true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if t, err := http.ParseTime(value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
