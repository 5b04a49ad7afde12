// semgrep_adapter.go
// ------------------
// This adapter integrates with the Semgrep App API. It answers 429 without budget
// headers.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const SemgrepBaseURL = "https://semgrep.dev/api/v1"

func NewSemgrepAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = ""
	limits.RemainingHeader = ""
	limits.ResetHeader = ""
	return newAdapter(SemgrepBaseURL, jsonHeaders(), limits, creds, opts)
}
