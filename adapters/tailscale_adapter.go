// tailscale_adapter.go
// --------------------
// This adapter integrates with the Tailscale API v2. Access tokens and OAuth client
// tokens are both sent as Bearer; OAuth clients fit credentials.NewClientCredentials
// with the https://api.tailscale.com/api/v2/oauth/token endpoint. Throttled calls get a
// 429 with Retry-After.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	TailscaleBaseURL  = "https://api.tailscale.com/api/v2"
	TailscaleTokenURL = TailscaleBaseURL + "/oauth/token"
)

func NewTailscaleAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = ""
	limits.RemainingHeader = ""
	limits.ResetHeader = ""
	return newAdapter(TailscaleBaseURL, jsonHeaders(), limits, creds, opts)
}
