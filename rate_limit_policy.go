// rate_limit_policy.go
// --------------------
// RateLimitConfig describes how one provider signals throttling and how long to back off.
// Everything here is pure: detection looks only at the result of an attempt, and delay
// computation looks only at parsed headers, the attempt number and the current time.
//
// Delay order:
//  1. an explicit retry-after value,
//  2. the reset instant minus now, when it lies in the future,
//  3. InitialBackoff * BackoffMultiplier^(attempt-1).
package resilientbridge

import (
	"math"
	"net/http"
	"time"

	"github.com/opengovern/resilient-bridge/v2/internal"
)

const (
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = time.Second
	DefaultBackoffMultiplier = 2.0

	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// ResetFormat tells how the reset header is encoded.
type ResetFormat int

const (
	// ResetEpochSeconds is a UNIX timestamp in seconds (GitHub, HubSpot).
	ResetEpochSeconds ResetFormat = iota
	// ResetEpochMillis is a UNIX timestamp in milliseconds (Linear).
	ResetEpochMillis
	// ResetDeltaSeconds is the number of seconds until reset (Discord, Docker Hub).
	ResetDeltaSeconds
	// ResetDuration is a Go-style duration string such as "6m0s" (OpenAI).
	ResetDuration
)

// Classifier decides whether an attempt was throttled. res is nil when the transport
// failed; err is nil when a response was received.
type Classifier func(res *RequestResult, err error) bool

// StatusClassifier treats the given status codes as throttling.
func StatusClassifier(codes ...int) Classifier {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return func(res *RequestResult, _ error) bool {
		if res == nil {
			return false
		}
		_, ok := set[res.StatusCode]
		return ok
	}
}

// RateLimitConfig is the per-provider throttling policy. It is passed by value and
// never modified during a call. Zero-valued fields fall back to the defaults noted.
type RateLimitConfig struct {
	// Enabled turns detection and retries on. A disabled config never retries.
	Enabled bool
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialBackoff defaults to one second.
	InitialBackoff time.Duration
	// BackoffMultiplier defaults to 2. Values between 0 and 1 are raised to 1.
	BackoffMultiplier float64
	// MaxBackoff caps the exponential delay. Zero means uncapped.
	MaxBackoff time.Duration

	RetryAfterHeader string
	// RetryAfterUnit is the unit of a numeric retry-after value. Defaults to seconds.
	RetryAfterUnit  time.Duration
	RemainingHeader string
	LimitHeader     string
	ResetHeader     string
	ResetFormat     ResetFormat

	// Classifier defaults to treating 429 as throttling.
	Classifier Classifier
}

// DefaultRateLimitConfig returns the policy used when a provider does not supply one:
// enabled, 3 retries, 1s initial backoff doubling each attempt, the common
// Retry-After / X-RateLimit-* headers with an epoch-seconds reset, and 429 detection.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           true,
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
		RetryAfterHeader:  HeaderRetryAfter,
		RetryAfterUnit:    time.Second,
		RemainingHeader:   HeaderRateLimitRemaining,
		LimitHeader:       HeaderRateLimitLimit,
		ResetHeader:       HeaderRateLimitReset,
		ResetFormat:       ResetEpochSeconds,
		Classifier:        StatusClassifier(http.StatusTooManyRequests),
	}
}

// MaxAttempts is MaxRetries+1, or 1 when retries are disabled.
func (c RateLimitConfig) MaxAttempts() int {
	if !c.Enabled || c.MaxRetries < 0 {
		return 1
	}
	return c.MaxRetries + 1
}

// IsRateLimited applies the classifier to one attempt.
func (c RateLimitConfig) IsRateLimited(res *RequestResult, err error) bool {
	if !c.Enabled {
		return false
	}
	classify := c.Classifier
	if classify == nil {
		classify = StatusClassifier(http.StatusTooManyRequests)
	}
	return classify(res, err)
}

// ParseRateLimitInfo extracts rate-limit metadata from response headers. It returns nil
// when none of the configured headers is present.
func (c RateLimitConfig) ParseRateLimitInfo(h http.Header, now time.Time) *RateLimitInfo {
	if h == nil {
		return nil
	}
	info := &RateLimitInfo{}

	if c.RetryAfterHeader != "" {
		if v := h.Get(c.RetryAfterHeader); v != "" {
			unit := c.RetryAfterUnit
			if unit <= 0 {
				unit = time.Second
			}
			if d, ok := internal.ParseRetryAfter(v, unit, now); ok {
				info.RetryAfter = &d
			}
		}
	}
	if c.RemainingHeader != "" {
		if n, ok := internal.ParseInt(h.Get(c.RemainingHeader)); ok {
			info.Remaining = &n
		}
	}
	if c.LimitHeader != "" {
		if n, ok := internal.ParseInt(h.Get(c.LimitHeader)); ok {
			info.Limit = &n
		}
	}
	if c.ResetHeader != "" {
		if t, ok := c.parseReset(h.Get(c.ResetHeader), now); ok {
			info.Reset = &t
		}
	}

	if info.Empty() {
		return nil
	}
	return info
}

func (c RateLimitConfig) parseReset(v string, now time.Time) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	switch c.ResetFormat {
	case ResetEpochMillis:
		return internal.ParseEpoch(v, true)
	case ResetDeltaSeconds:
		d, ok := internal.ParseSeconds(v)
		if !ok {
			return time.Time{}, false
		}
		return now.Add(d), true
	case ResetDuration:
		ms := internal.ParseTimeStr(v)
		if ms == 0 {
			return time.Time{}, false
		}
		return now.Add(time.Duration(ms) * time.Millisecond), true
	default:
		return internal.ParseEpoch(v, false)
	}
}

// BackoffDelay is the exponential delay before retrying after the given attempt.
// Attempts are numbered from 1.
func (c RateLimitConfig) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := c.InitialBackoff
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	multiplier := c.BackoffMultiplier
	switch {
	case multiplier <= 0:
		multiplier = DefaultBackoffMultiplier
	case multiplier < 1:
		multiplier = 1
	}

	// float64(math.MaxInt64) rounds up to 2^63, which no longer fits a Duration.
	delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	d := time.Duration(math.MaxInt64)
	if delay < float64(math.MaxInt64) {
		d = time.Duration(delay)
	}
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

// RetryDelay picks the delay before the next attempt from the parsed headers, falling
// back to BackoffDelay.
func (c RateLimitConfig) RetryDelay(info *RateLimitInfo, attempt int, now time.Time) time.Duration {
	if info != nil {
		if info.RetryAfter != nil {
			return *info.RetryAfter
		}
		if info.Reset != nil && info.Reset.After(now) {
			return info.Reset.Sub(now)
		}
	}
	return c.BackoffDelay(attempt)
}
