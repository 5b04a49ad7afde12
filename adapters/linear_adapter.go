// linear_adapter.go
// -----------------
// This adapter integrates with the Linear GraphQL API.
//
// Linear limits requests and query complexity per hour. Responses carry
// X-RateLimit-Requests-Limit, -Remaining and -Reset, the reset being epoch
// milliseconds. A throttled query is answered with a GraphQL error whose
// extensions.code is RATELIMITED (HTTP 400), or a plain 429.
//
// Personal API keys are sent verbatim in Authorization, OAuth tokens as Bearer:
// credentials.Header("Authorization", key) or credentials.Bearer(token).
package adapters

import (
	"net/http"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	LinearBaseURL     = "https://api.linear.app"
	LinearGraphQLPath = "/graphql"

	LinearLimitHeader     = "X-RateLimit-Requests-Limit"
	LinearRemainingHeader = "X-RateLimit-Requests-Remaining"
	LinearResetHeader     = "X-RateLimit-Requests-Reset"
)

func NewLinearAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = LinearLimitHeader
	limits.RemainingHeader = LinearRemainingHeader
	limits.ResetHeader = LinearResetHeader
	limits.ResetFormat = resilientbridge.ResetEpochMillis
	limits.Classifier = LinearThrottled
	return newAdapter(LinearBaseURL, jsonHeaders(), limits, creds, opts)
}

// LinearThrottled treats 429 and RATELIMITED GraphQL errors as throttling.
func LinearThrottled(res *resilientbridge.RequestResult, _ error) bool {
	if res == nil {
		return false
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return hasGraphQLError(res, "code", "RATELIMITED")
}

// LinearQuery builds the request description of a GraphQL call.
func LinearQuery(query string, variables map[string]any) *resilientbridge.RequestDescription {
	body := map[string]any{"query": query}
	if len(variables) > 0 {
		body["variables"] = variables
	}
	return &resilientbridge.RequestDescription{
		Method: http.MethodPost,
		URL:    LinearGraphQLPath,
		Body:   body,
	}
}
