// render_adapter.go
// -----------------
// This adapter integrates with the Render API. Render uses the IETF RateLimit header
// names without the X- prefix (RateLimit-Limit / -Remaining / -Reset, the reset being
// epoch seconds) and answers 429 with Retry-After.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const RenderBaseURL = "https://api.render.com/v1"

func NewRenderAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = "RateLimit-Limit"
	limits.RemainingHeader = "RateLimit-Remaining"
	limits.ResetHeader = "RateLimit-Reset"
	return newAdapter(RenderBaseURL, jsonHeaders(), limits, creds, opts)
}
