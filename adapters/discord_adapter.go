// discord_adapter.go
// ------------------
// This adapter integrates with the Discord HTTP API (v10).
//
// Discord sends per-route buckets: X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset-After (fractional seconds until the bucket refills). A 429 carries
// Retry-After in fractional seconds, e.g. "1.337". Bots authenticate with
// "Authorization: Bot <token>", see credentials.AuthorizationScheme.
package adapters

import (
	"time"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const DiscordBaseURL = "https://discord.com/api/v10"

func NewDiscordAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.RetryAfterUnit = time.Second
	limits.ResetHeader = "X-RateLimit-Reset-After"
	limits.ResetFormat = resilientbridge.ResetDeltaSeconds
	return newAdapter(DiscordBaseURL, jsonHeaders(), limits, creds, opts)
}
