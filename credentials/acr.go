// credentials/acr.go
// ------------------
// ACR turns a Microsoft Entra ID token into an Azure Container Registry access token:
//  1. resolve the AAD token from the wrapped source (usually an AzureServicePrincipal)
//  2. POST it to {registry}/oauth2/exchange for an ACR refresh token
//  3. POST the refresh token to {registry}/oauth2/token for an access token scoped to
//     the requested repository actions
//
// The access token is sent as a Bearer token and cached until the exp claim it carries.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	// DefaultACRScope allows listing repositories.
	DefaultACRScope = "registry:catalog:*"
	// ACRTokenUsername is the docker login user paired with an ACR token.
	ACRTokenUsername = "00000000-0000-0000-0000-000000000000"

	// acrFallbackLifetime applies when the access token carries no readable exp.
	acrFallbackLifetime = 5 * time.Minute
)

// ACR resolves registry access tokens for one Azure Container Registry.
type ACR struct {
	aad     resilientbridge.CredentialSource
	baseURL string
	service string
	scope   string
	client  *http.Client
	now     func() time.Time
	cache   tokenCache
}

type ACROption func(*ACR)

// WithACRScope sets the token scope, e.g. "repository:team/app:pull".
func WithACRScope(scope string) ACROption {
	return func(a *ACR) { a.scope = scope }
}

func WithACRHTTPClient(client *http.Client) ACROption {
	return func(a *ACR) {
		if client != nil {
			a.client = client
		}
	}
}

// NewACR targets registry, a host such as "myregistry.azurecr.io" or a full URL.
// aad must resolve to a Bearer token for the registry's tenant.
func NewACR(registry string, aad resilientbridge.CredentialSource, opts ...ACROption) (*ACR, error) {
	base := strings.TrimRight(registry, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("acr: invalid registry %q", registry)
	}
	if aad == nil {
		return nil, fmt.Errorf("%w: acr: no AAD credential source", ErrNoCredentials)
	}
	a := &ACR{
		aad:     aad,
		baseURL: base,
		service: u.Host,
		scope:   DefaultACRScope,
		client:  http.DefaultClient,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cache.fetch = a.fetch
	return a, nil
}

func (a *ACR) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	tok, err := a.cache.get(ctx)
	if err != nil {
		return resilientbridge.Credential{}, err
	}
	return credentialFor(tok, ""), nil
}

func (a *ACR) fetch(ctx context.Context) (*oauth2.Token, error) {
	cred, err := a.aad.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("acr: resolving AAD token: %w", err)
	}
	if cred.Scheme != resilientbridge.SchemeBearer || cred.Token == "" {
		return nil, fmt.Errorf("%w: acr: AAD source did not return a bearer token", ErrNoCredentials)
	}

	var exchanged struct {
		RefreshToken string `json:"refresh_token"`
	}
	err = a.post(ctx, "/oauth2/exchange", url.Values{
		"grant_type":   {"access_token"},
		"service":      {a.service},
		"access_token": {cred.Token},
	}, &exchanged)
	if err != nil {
		return nil, err
	}

	var issued struct {
		AccessToken string `json:"access_token"`
	}
	err = a.post(ctx, "/oauth2/token", url.Values{
		"grant_type":    {"refresh_token"},
		"service":       {a.service},
		"scope":         {a.scope},
		"refresh_token": {exchanged.RefreshToken},
	}, &issued)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: issued.AccessToken, TokenType: "Bearer", Expiry: a.expiry(issued.AccessToken)}, nil
}

func (a *ACR) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: acr %s: %w", ErrTokenExchange, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: acr %s: reading response: %w", ErrTokenExchange, path, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: acr %s: status %d: %s", ErrTokenExchange, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: acr %s: decoding response: %w", ErrTokenExchange, path, err)
	}
	return nil
}

// expiry reads the exp claim without verifying the token; the registry verifies it.
func (a *ACR) expiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return a.now().Add(acrFallbackLifetime)
}
