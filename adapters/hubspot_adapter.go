// hubspot_adapter.go
// ------------------
// This adapter integrates with the HubSpot CRM API.
//
// HubSpot enforces a burst limit per 10 second interval and a daily limit. Responses
// carry X-HubSpot-RateLimit-Max and X-HubSpot-RateLimit-Remaining for the burst window
// but no reset instant, so throttled calls back off exponentially up to the interval.
package adapters

import (
	"time"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	HubSpotBaseURL = "https://api.hubapi.com"

	HubSpotLimitHeader          = "X-HubSpot-RateLimit-Max"
	HubSpotRemainingHeader      = "X-HubSpot-RateLimit-Remaining"
	HubSpotDailyRemainingHeader = "X-HubSpot-RateLimit-Daily-Remaining"

	hubSpotInterval = 10 * time.Second
)

// NewHubSpotAdapter accepts a private app token or an OAuth client-credentials source.
func NewHubSpotAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = HubSpotLimitHeader
	limits.RemainingHeader = HubSpotRemainingHeader
	limits.ResetHeader = ""
	limits.MaxBackoff = hubSpotInterval
	return newAdapter(HubSpotBaseURL, jsonHeaders(), limits, creds, opts)
}
