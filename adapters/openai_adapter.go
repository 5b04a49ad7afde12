// openai_adapter.go
// -----------------
// This adapter integrates with the OpenAI API.
//
// OpenAI reports request and token budgets separately:
//   - x-ratelimit-limit-requests / x-ratelimit-remaining-requests
//   - x-ratelimit-reset-requests, a Go-style duration such as "6m0s" or "20ms"
//
// A 429 is throttling unless the error code is insufficient_quota: an exhausted billing
// quota does not recover by waiting and is returned immediately.
package adapters

import (
	"net/http"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"

	OpenAILimitHeader     = "x-ratelimit-limit-requests"
	OpenAIRemainingHeader = "x-ratelimit-remaining-requests"
	OpenAIResetHeader     = "x-ratelimit-reset-requests"
)

func NewOpenAIAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = OpenAILimitHeader
	limits.RemainingHeader = OpenAIRemainingHeader
	limits.ResetHeader = OpenAIResetHeader
	limits.ResetFormat = resilientbridge.ResetDuration
	limits.Classifier = OpenAIThrottled
	return newAdapter(OpenAIBaseURL, jsonHeaders(), limits, creds, opts)
}

// OpenAIThrottled treats 429 as throttling except for insufficient_quota.
func OpenAIThrottled(res *resilientbridge.RequestResult, _ error) bool {
	if res == nil || res.StatusCode != http.StatusTooManyRequests {
		return false
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
			Type string `json:"type"`
		} `json:"error"`
	}
	if decodeJSON(res, &body) && (body.Error.Code == "insufficient_quota" || body.Error.Type == "insufficient_quota") {
		return false
	}
	return true
}
