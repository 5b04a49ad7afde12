// github_adapter.go
// -----------------
// This adapter integrates with the GitHub REST and GraphQL APIs.
//
// Key Points:
//   - Rate limits: 5000 requests/hour for REST and 5000 points/hour for GraphQL by default.
//     Every response carries x-ratelimit-limit / -remaining / -reset (epoch seconds).
//   - Primary limit: 403 or 429 with x-ratelimit-remaining: 0. Wait until the reset.
//   - Secondary limit: 403 or 429 with a Retry-After header, or a 403 whose message says
//     "secondary rate limit". Wait Retry-After seconds, else back off.
//   - GraphQL reports an exhausted budget as 200 with an error of type RATE_LIMITED.
//   - A 403 for a missing permission is not throttling and is never retried.
package adapters

import (
	"net/http"
	"strings"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	GitHubBaseURL     = "https://api.github.com"
	GitHubAPIVersion  = "2022-11-28"
	GitHubGraphQLPath = "/graphql"
)

// NewGitHubAdapter targets api.github.com. Use WithBaseURL for GitHub Enterprise Server
// ("https://ghe.example.com/api/v3").
func NewGitHubAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.Classifier = GitHubThrottled
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": GitHubAPIVersion,
	}
	return newAdapter(GitHubBaseURL, headers, limits, creds, opts)
}

// GitHubThrottled classifies primary, secondary and GraphQL rate limits.
func GitHubThrottled(res *resilientbridge.RequestResult, _ error) bool {
	if res == nil {
		return false
	}
	switch res.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		if res.Header.Get(resilientbridge.HeaderRateLimitRemaining) == "0" || res.Header.Get(resilientbridge.HeaderRetryAfter) != "" {
			return true
		}
		var body struct {
			Message string `json:"message"`
		}
		return decodeJSON(res, &body) && strings.Contains(strings.ToLower(body.Message), "rate limit")
	case http.StatusOK:
		return hasGraphQLError(res, "type", "RATE_LIMITED")
	}
	return false
}

// hasGraphQLError reports whether a GraphQL response carries an error whose field (at
// the top level or under extensions) equals value.
func hasGraphQLError(res *resilientbridge.RequestResult, field, value string) bool {
	var body struct {
		Errors []map[string]any `json:"errors"`
	}
	if !decodeJSON(res, &body) {
		return false
	}
	for _, e := range body.Errors {
		if v, _ := e[field].(string); v == value {
			return true
		}
		if ext, ok := e["extensions"].(map[string]any); ok {
			if v, _ := ext[field].(string); v == value {
				return true
			}
		}
	}
	return false
}

func decodeJSON(res *resilientbridge.RequestResult, v any) bool {
	return len(res.JSON) > 0 && res.Decode(v) == nil
}
