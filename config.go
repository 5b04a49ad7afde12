// config.go
// ----------
// This file defines the ProviderConfig structure, which allows per-provider customization
// of behavior on top of what the adapter supplies: a replacement rate-limit policy, a
// proactive client-side request rate, extra headers and the HTTP client to use.
//
// A nil *ProviderConfig is valid and means "use the adapter as is".
package resilientbridge

import (
	"net/http"

	"golang.org/x/time/rate"
)

// ProviderConfig allows per-provider customization of rate limits, retries, and other settings.
type ProviderConfig struct {
	// RateLimit replaces the adapter's RateLimitConfig when set.
	RateLimit *RateLimitConfig

	// UseProviderLimits holds a request until the reported reset instant once the
	// provider said no requests remain in the window.
	UseProviderLimits bool

	// RequestsPerSecond enables a client-side token bucket. Zero disables it.
	RequestsPerSecond float64
	// Burst defaults to 1 when RequestsPerSecond is set.
	Burst int

	// Headers are added to every request after the adapter defaults.
	Headers map[string]string
	// Credentials replaces the adapter's credential source when set.
	Credentials CredentialSource

	HTTPClient *http.Client
}

func (c *ProviderConfig) rateLimitFor(adapter ProviderAdapter) RateLimitConfig {
	if c != nil && c.RateLimit != nil {
		return *c.RateLimit
	}
	return adapter.RateLimitConfig()
}

func (c *ProviderConfig) credentialsFor(adapter ProviderAdapter) CredentialSource {
	if c != nil && c.Credentials != nil {
		return c.Credentials
	}
	return adapter.Credentials()
}

func (c *ProviderConfig) limiter() *rate.Limiter {
	if c == nil || c.RequestsPerSecond <= 0 {
		return nil
	}
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), burst)
}
