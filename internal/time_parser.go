// internal/time_parser.go
// ------------------------
// This internal package provides helpers for turning provider rate-limit header values
// into durations and instants. Providers disagree on units: some send seconds, some
// milliseconds, some fractional seconds, some Go-style duration strings ("6m0s") and
// some HTTP dates. Everything is normalized here so the rate-limit policy stays pure.
//
// Functions:
// - ParseTimeStr: Convert strings like "1s", "6m0s", "20ms" into milliseconds.
// - ParseSeconds: Parse an integer or fractional number of seconds.
// - ParseRetryAfter: Parse a Retry-After value (delta or HTTP date).
// - ParseEpoch: Parse an epoch timestamp in seconds or milliseconds.
// - ParseInt: Parse the leading integer of a header value.
package internal

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseTimeStr converts strings like "1s", "6m0s", "1h2m3.5s" or "20ms" into ms.
// It returns 0 if the value cannot be parsed.
func ParseTimeStr(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d.Milliseconds()
}

// ParseSeconds parses values like "3", "1.250" or " 60 " as a number of seconds.
func ParseSeconds(s string) (time.Duration, bool) {
	return parseScaled(s, time.Second)
}

// ParseDelta parses a non-negative number expressed in the given unit.
func ParseDelta(s string, unit time.Duration) (time.Duration, bool) {
	if unit <= 0 {
		unit = time.Second
	}
	return parseScaled(s, unit)
}

func parseScaled(s string, unit time.Duration) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Docker Hub style "76;w=21600": only the leading number matters.
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return time.Duration(v * float64(unit)), true
}

// ParseRetryAfter parses a Retry-After header value. The value is either a delta
// in the given unit or an HTTP date, in which case the delta is computed from now.
func ParseRetryAfter(s string, unit time.Duration, now time.Time) (time.Duration, bool) {
	if d, ok := ParseDelta(s, unit); ok {
		return d, true
	}
	t, err := http.ParseTime(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	d := t.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// ParseEpoch parses an epoch timestamp. When millis is false the value is taken as
// (possibly fractional) seconds.
func ParseEpoch(s string, millis bool) (time.Time, bool) {
	if n, ok := ParseInt(s); ok && n >= 0 {
		if millis {
			return time.UnixMilli(int64(n)), true
		}
		return time.Unix(int64(n), 0), true
	}
	unit := time.Second
	if millis {
		unit = time.Millisecond
	}
	d, ok := parseScaled(s, unit)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, 0).Add(d), true
}

// ParseInt parses the leading integer of a header value ("76;w=21600" → 76).
func ParseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
