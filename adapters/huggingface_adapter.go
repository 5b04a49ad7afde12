// huggingface_adapter.go
// ----------------------
// This adapter integrates with the Hugging Face Hub API. The Hub sends
// x-ratelimit-limit / -remaining / -reset (epoch seconds) when a limit applies to the
// route and a 429 when it is exhausted.
package adapters

import (
	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const HuggingFaceBaseURL = "https://huggingface.co"

func NewHuggingFaceAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	return newAdapter(HuggingFaceBaseURL, jsonHeaders(), resilientbridge.DefaultRateLimitConfig(), creds, opts)
}
