// doppler_adapter.go
// ------------------
// This adapter integrates with the Doppler API. Doppler sends x-ratelimit-limit,
// x-ratelimit-remaining and x-ratelimit-reset (epoch seconds) on every response and
// Retry-After on a 429, which is exactly the default policy.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const DopplerBaseURL = "https://api.doppler.com"

func NewDopplerAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	return newAdapter(DopplerBaseURL, jsonHeaders(), resilientbridge.DefaultRateLimitConfig(), creds, opts)
}
