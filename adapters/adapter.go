// adapters/adapter.go
// -------------------
// Package adapters holds the per-provider policy objects: outbound adapters describe
// where an API lives, which headers it needs, how it authenticates and how it signals
// throttling; webhook providers describe how a platform identifies, signs and shapes
// the events it delivers.
//
// Every outbound constructor returns an *Adapter preconfigured for the provider. Options
// adjust the base URL (GitHub Enterprise, EU data residency), headers or retry policy.
package adapters

import (
	"maps"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

// Provider names used when registering adapters.
const (
	ProviderGitHub      = "github"
	ProviderSlack       = "slack"
	ProviderDiscord     = "discord"
	ProviderHubSpot     = "hubspot"
	ProviderLinear      = "linear"
	ProviderOpenAI      = "openai"
	ProviderDoppler     = "doppler"
	ProviderDockerHub   = "dockerhub"
	ProviderAzure       = "azure"
	ProviderCloudflare  = "cloudflare"
	ProviderFlyIO       = "flyio"
	ProviderGitGuardian = "gitguardian"
	ProviderHeroku      = "heroku"
	ProviderHuggingFace = "huggingface"
	ProviderLinode      = "linode"
	ProviderRailway     = "railway"
	ProviderRender      = "render"
	ProviderSemgrep     = "semgrep"
	ProviderTailscale   = "tailscale"
)

// Adapter is a static ProviderAdapter.
type Adapter struct {
	URL     string
	Headers map[string]string
	Limits  resilientbridge.RateLimitConfig
	Creds   resilientbridge.CredentialSource
}

var _ resilientbridge.ProviderAdapter = (*Adapter)(nil)

// Option adjusts an Adapter after the provider defaults are applied.
type Option func(*Adapter)

// WithBaseURL replaces the API root.
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.URL = url }
}

// WithHeader adds or replaces a default header.
func WithHeader(name, value string) Option {
	return func(a *Adapter) {
		if a.Headers == nil {
			a.Headers = make(map[string]string)
		}
		a.Headers[name] = value
	}
}

// WithRateLimit edits the provider's policy in place, e.g. to lower MaxRetries.
func WithRateLimit(edit func(*resilientbridge.RateLimitConfig)) Option {
	return func(a *Adapter) { edit(&a.Limits) }
}

func newAdapter(url string, headers map[string]string, limits resilientbridge.RateLimitConfig, creds resilientbridge.CredentialSource, opts []Option) *Adapter {
	a := &Adapter{URL: url, Headers: headers, Limits: limits, Creds: creds}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) BaseURL() string {
	return a.URL
}

// DefaultHeaders returns a copy; callers may modify it.
func (a *Adapter) DefaultHeaders() map[string]string {
	return maps.Clone(a.Headers)
}

func (a *Adapter) RateLimitConfig() resilientbridge.RateLimitConfig {
	return a.Limits
}

func (a *Adapter) Credentials() resilientbridge.CredentialSource {
	return a.Creds
}

// jsonHeaders is the default header set of JSON APIs.
func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}
