// slack_adapter.go
// ----------------
// This adapter integrates with the Slack Web API.
//
// Slack throttles per method and workspace ("tiers"). A throttled call gets a 429 with
// Retry-After in seconds. Some methods instead answer 200 with {"ok": false, "error":
// "ratelimited"}; both are treated as throttling. Other {"ok": false} answers are
// application errors and are returned to the caller as successful HTTP results.
package adapters

import (
	"net/http"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const SlackBaseURL = "https://slack.com/api"

// NewSlackAdapter expects a bot or user token as a Bearer credential.
func NewSlackAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.RemainingHeader = ""
	limits.LimitHeader = ""
	limits.ResetHeader = ""
	limits.Classifier = SlackThrottled
	headers := map[string]string{"Accept": "application/json; charset=utf-8"}
	return newAdapter(SlackBaseURL, headers, limits, creds, opts)
}

// SlackThrottled treats 429 and 200 {"ok":false,"error":"ratelimited"} as throttling.
func SlackThrottled(res *resilientbridge.RequestResult, _ error) bool {
	if res == nil {
		return false
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var body struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if !decodeJSON(res, &body) || body.OK == nil || *body.OK {
		return false
	}
	return body.Error == "ratelimited" || body.Error == "rate_limited"
}
