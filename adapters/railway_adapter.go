// railway_adapter.go
// ------------------
// This adapter integrates with the Railway public GraphQL API. Railway sends
// X-RateLimit-Limit / -Remaining / -Reset (epoch seconds) per token and answers 429
// once the hourly budget is spent.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	RailwayBaseURL     = "https://backboard.railway.app"
	RailwayGraphQLPath = "/graphql/v2"
)

func NewRailwayAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	return newAdapter(RailwayBaseURL, jsonHeaders(), resilientbridge.DefaultRateLimitConfig(), creds, opts)
}
