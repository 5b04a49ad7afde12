// heroku_adapter.go
// -----------------
// This adapter integrates with the Heroku Platform API (version 3). Heroku refills a
// bucket of 4500 tokens per hour and reports the balance in RateLimit-Remaining. There
// is no reset header; a 429 backs off exponentially.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	HerokuBaseURL = "https://api.heroku.com"

	HerokuRemainingHeader = "RateLimit-Remaining"
)

func NewHerokuAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = ""
	limits.ResetHeader = ""
	limits.RemainingHeader = HerokuRemainingHeader
	headers := map[string]string{"Accept": "application/vnd.heroku+json; version=3"}
	return newAdapter(HerokuBaseURL, headers, limits, creds, opts)
}
