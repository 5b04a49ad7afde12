package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
	"github.com/opengovern/resilient-bridge/v2/adapters"
	"github.com/opengovern/resilient-bridge/v2/credentials"
)

// tokenEnv is the variable holding the API token for provider, e.g. GITHUB_API_TOKEN.
func tokenEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_TOKEN"
}

// tokenCredential applies the provider's token convention.
func tokenCredential(provider, token string) resilientbridge.CredentialSource {
	switch provider {
	case adapters.ProviderGitGuardian:
		return credentials.AuthorizationScheme("Token", token)
	case adapters.ProviderDiscord:
		return credentials.AuthorizationScheme("Bot", token)
	case adapters.ProviderLinear:
		// Personal API keys are sent without a scheme.
		if strings.HasPrefix(token, "lin_api_") {
			return credentials.Header("Authorization", token)
		}
	}
	return credentials.Bearer(token)
}

// credentialsFor picks the credential source for provider: an explicit token first,
// then provider specific identities from the environment, then {PROVIDER}_API_TOKEN.
// A nil source means the request is sent unauthenticated.
func credentialsFor(ctx context.Context, provider, token, baseURL string) (resilientbridge.CredentialSource, error) {
	if token != "" {
		return tokenCredential(provider, token), nil
	}

	switch provider {
	case adapters.ProviderGitHub:
		if appID := os.Getenv("GITHUB_APP_ID"); appID != "" {
			return githubInstallation(appID, baseURL)
		}
	case adapters.ProviderAzure:
		if tenant := os.Getenv("AZURE_TENANT_ID"); tenant != "" {
			return credentials.NewAzureServicePrincipal(credentials.AzureConfig{
				TenantID:     tenant,
				ClientID:     os.Getenv("AZURE_CLIENT_ID"),
				ClientSecret: os.Getenv("AZURE_CLIENT_SECRET"),
			}, nil)
		}
	case adapters.ProviderTailscale:
		if id := os.Getenv("TAILSCALE_CLIENT_ID"); id != "" {
			return credentials.NewClientCredentials(clientcredentials.Config{
				ClientID:     id,
				ClientSecret: os.Getenv("TAILSCALE_CLIENT_SECRET"),
				TokenURL:     adapters.TailscaleTokenURL,
			}), nil
		}
	case adapters.ProviderDockerHub:
		return registryCredentials(ctx, baseURL)
	}

	name := tokenEnv(provider)
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return tokenCredential(provider, v), nil
	}
	return nil, nil
}

func githubInstallation(appID, baseURL string) (resilientbridge.CredentialSource, error) {
	keyFile := os.Getenv("GITHUB_APP_PRIVATE_KEY_FILE")
	if keyFile == "" {
		return nil, fmt.Errorf("%w: GITHUB_APP_PRIVATE_KEY_FILE is required with GITHUB_APP_ID", credentials.ErrNoCredentials)
	}
	pem, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading GitHub App key: %w", err)
	}
	app, err := credentials.NewGitHubApp(appID, pem)
	if err != nil {
		return nil, err
	}
	raw := os.Getenv("GITHUB_APP_INSTALLATION_ID")
	if raw == "" {
		// App level endpoints (/app, /app/installations) take the JWT itself.
		return app, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("GITHUB_APP_INSTALLATION_ID: %w", err)
	}
	var opts []credentials.InstallationOption
	if baseURL != "" {
		opts = append(opts, credentials.WithGitHubBaseURL(baseURL))
	}
	return app.Installation(id, opts...), nil
}

// registryCredentials serves the registry named by baseURL (Docker Hub by default):
// a service account key for Google registries when GOOGLE_APPLICATION_CREDENTIALS is
// set, an exchanged ACR token for Azure registries when AZURE_TENANT_ID is set, the
// docker keychain otherwise.
func registryCredentials(ctx context.Context, baseURL string) (resilientbridge.CredentialSource, error) {
	host := "index.docker.io"
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("--base-url %q is not a registry URL", baseURL)
		}
		host = u.Host
	}
	if keyFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); keyFile != "" && isGoogleRegistry(host) {
		key, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading service account key: %w", err)
		}
		return credentials.GCR(ctx, key)
	}
	if tenant := os.Getenv("AZURE_TENANT_ID"); tenant != "" && strings.HasSuffix(host, ".azurecr.io") {
		return acrCredentials(host, tenant)
	}
	return credentials.NewKeychain(host, nil), nil
}

func acrCredentials(host, tenant string) (resilientbridge.CredentialSource, error) {
	aad, err := credentials.NewAzureServicePrincipal(credentials.AzureConfig{
		TenantID:     tenant,
		ClientID:     os.Getenv("AZURE_CLIENT_ID"),
		ClientSecret: os.Getenv("AZURE_CLIENT_SECRET"),
	}, nil)
	if err != nil {
		return nil, err
	}
	var opts []credentials.ACROption
	if scope := os.Getenv("AZURE_ACR_SCOPE"); scope != "" {
		opts = append(opts, credentials.WithACRScope(scope))
	}
	return credentials.NewACR(host, aad, opts...)
}

func isGoogleRegistry(host string) bool {
	return host == "gcr.io" || strings.HasSuffix(host, ".gcr.io") || strings.HasSuffix(host, "-docker.pkg.dev")
}
