package adapters

import (
	"slices"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
	"github.com/opengovern/resilient-bridge/v2/webhook"
)

// Factory builds an outbound adapter.
type Factory func(creds resilientbridge.CredentialSource, opts ...Option) *Adapter

var factories = map[string]Factory{
	ProviderGitHub:      NewGitHubAdapter,
	ProviderSlack:       NewSlackAdapter,
	ProviderDiscord:     NewDiscordAdapter,
	ProviderHubSpot:     NewHubSpotAdapter,
	ProviderLinear:      NewLinearAdapter,
	ProviderOpenAI:      NewOpenAIAdapter,
	ProviderDoppler:     NewDopplerAdapter,
	ProviderDockerHub:   NewDockerHubAdapter,
	ProviderAzure:       NewAzureAdapter,
	ProviderCloudflare:  NewCloudflareAdapter,
	ProviderFlyIO:       NewFlyIOAdapter,
	ProviderGitGuardian: NewGitGuardianAdapter,
	ProviderHeroku:      NewHerokuAdapter,
	ProviderHuggingFace: NewHuggingFaceAdapter,
	ProviderLinode:      NewLinodeAdapter,
	ProviderRailway:     NewRailwayAdapter,
	ProviderRender:      NewRenderAdapter,
	ProviderSemgrep:     NewSemgrepAdapter,
	ProviderTailscale:   NewTailscaleAdapter,
}

// Lookup returns the outbound adapter factory registered under name.
func Lookup(name string) (Factory, bool) {
	f, ok := factories[name]
	return f, ok
}

// Names lists the outbound providers, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// WebhookSecrets holds the per-provider verification material. Providers with an empty
// value still receive webhooks, unauthenticated.
type WebhookSecrets struct {
	GitHub     string
	Slack      string
	DiscordKey string
	HubSpot    string
	Linear     string
}

// WebhookProviders returns every inbound provider, most specific matcher first: the
// header based matchers precede HubSpot, whose unsigned requests are matched on the body.
func WebhookProviders(s WebhookSecrets) []webhook.Provider {
	return []webhook.Provider{
		NewGitHubWebhook(s.GitHub),
		NewSlackWebhook(s.Slack),
		NewDiscordWebhook(s.DiscordKey),
		NewLinearWebhook(s.Linear),
		NewHubSpotWebhook(s.HubSpot),
	}
}
