// Package mock provides a configurable ProviderAdapter and credential sources for tests.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const MockBaseURL = "https://api.mock.test"

// MockAdapter is a ProviderAdapter whose every policy knob is a field.
type MockAdapter struct {
	URL     string
	Headers map[string]string
	Limits  *resilientbridge.RateLimitConfig
	Creds   resilientbridge.CredentialSource
}

// NewMockAdapter returns an adapter for MockBaseURL using the default rate-limit policy
// with millisecond backoff so retry tests stay fast.
func NewMockAdapter() *MockAdapter {
	cfg := resilientbridge.DefaultRateLimitConfig()
	cfg.InitialBackoff = resilientbridge.DefaultInitialBackoff / 1000
	return &MockAdapter{
		URL:     MockBaseURL,
		Headers: map[string]string{"Accept": "application/json"},
		Limits:  &cfg,
	}
}

func (m *MockAdapter) BaseURL() string {
	return m.URL
}

func (m *MockAdapter) DefaultHeaders() map[string]string {
	return m.Headers
}

func (m *MockAdapter) RateLimitConfig() resilientbridge.RateLimitConfig {
	if m.Limits == nil {
		return resilientbridge.DefaultRateLimitConfig()
	}
	return *m.Limits
}

func (m *MockAdapter) Credentials() resilientbridge.CredentialSource {
	return m.Creds
}

// CountingCredentials hands out "token-1", "token-2", ... and counts resolutions.
type CountingCredentials struct {
	calls atomic.Int64
	// Err, when set, is returned instead of a credential.
	Err error
}

func (c *CountingCredentials) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	if err := ctx.Err(); err != nil {
		return resilientbridge.Credential{}, err
	}
	n := c.calls.Add(1)
	if c.Err != nil {
		return resilientbridge.Credential{}, c.Err
	}
	return resilientbridge.Credential{
		Scheme: resilientbridge.SchemeBearer,
		Token:  fmt.Sprintf("token-%d", n),
	}, nil
}

// Calls returns how many times Resolve ran.
func (c *CountingCredentials) Calls() int {
	return int(c.calls.Load())
}
