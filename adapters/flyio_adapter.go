// flyio_adapter.go
// ----------------
// This adapter integrates with the Fly.io Machines API. Fly.io throttles per action
// (about one request per second per machine for mutations) and answers 429 without
// budget headers.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const FlyIOBaseURL = "https://api.machines.dev/v1"

func NewFlyIOAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = ""
	limits.RemainingHeader = ""
	limits.ResetHeader = ""
	return newAdapter(FlyIOBaseURL, jsonHeaders(), limits, creds, opts)
}
