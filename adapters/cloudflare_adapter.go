// cloudflare_adapter.go
// ---------------------
// This adapter integrates with the Cloudflare v4 API. Cloudflare allows 1200 requests
// per five minutes per user and answers a 429 with Retry-After. It sends no budget
// headers, so a client-side rate (ProviderConfig.RequestsPerSecond = 4) is the way to
// stay under the limit.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const CloudflareBaseURL = "https://api.cloudflare.com/client/v4"

func NewCloudflareAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = ""
	limits.RemainingHeader = ""
	limits.ResetHeader = ""
	return newAdapter(CloudflareBaseURL, jsonHeaders(), limits, creds, opts)
}
