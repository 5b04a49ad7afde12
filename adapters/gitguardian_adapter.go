// gitguardian_adapter.go
// ----------------------
// This adapter integrates with the GitGuardian API. Tokens are sent as
// "Authorization: Token <key>" (credentials.AuthorizationScheme("Token", key)).
// Limits depend on the workspace plan; a 429 carries Retry-After.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const GitGuardianBaseURL = "https://api.gitguardian.com/v1"

func NewGitGuardianAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	return newAdapter(GitGuardianBaseURL, jsonHeaders(), resilientbridge.DefaultRateLimitConfig(), creds, opts)
}
