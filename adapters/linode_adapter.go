// linode_adapter.go
// -----------------
// This adapter integrates with the Linode (Akamai) API v4. Linode sends
// X-RateLimit-Limit / -Remaining / -Reset (epoch seconds) and answers 429 when a
// per-minute bucket is exhausted.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const LinodeBaseURL = "https://api.linode.com/v4"

func NewLinodeAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	return newAdapter(LinodeBaseURL, jsonHeaders(), resilientbridge.DefaultRateLimitConfig(), creds, opts)
}
