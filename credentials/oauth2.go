// credentials/oauth2.go
// ---------------------
// OAuth2 based sources. Tokens are cached until oauth2 considers them expired, so
// resolving once per attempt only reaches the token endpoint when needed.
package credentials

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	// GCRUsername is the fixed registry user paired with a Google access token.
	GCRUsername = "oauth2accesstoken"
	// GCRScope grants push and pull on Google container registries.
	GCRScope = "https://www.googleapis.com/auth/devstorage.read_write"
)

// tokenCache serializes fetches and hands out the cached token while it is valid.
type tokenCache struct {
	mu    sync.Mutex
	token *oauth2.Token
	fetch func(ctx context.Context) (*oauth2.Token, error)
}

func (c *tokenCache) get(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.Valid() {
		return c.token, nil
	}
	tok, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrTokenExchange)
	}
	c.token = tok
	return tok, nil
}

// invalidate drops the cached token so the next resolve fetches a new one.
func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func credentialFor(tok *oauth2.Token, username string) resilientbridge.Credential {
	if username != "" {
		return resilientbridge.Credential{Scheme: resilientbridge.SchemeBasic, Username: username, Password: tok.AccessToken}
	}
	return resilientbridge.Credential{Scheme: resilientbridge.SchemeBearer, Token: tok.AccessToken}
}

// TokenSource adapts an oauth2.TokenSource.
type TokenSource struct {
	src      oauth2.TokenSource
	username string
}

// FromTokenSource wraps src in an oauth2.ReuseTokenSource and sends its tokens as
// Bearer credentials.
func FromTokenSource(src oauth2.TokenSource) *TokenSource {
	return &TokenSource{src: oauth2.ReuseTokenSource(nil, src)}
}

// AsBasic sends the access token as the password of username instead, the way
// container registries expect it.
func (t *TokenSource) AsBasic(username string) *TokenSource {
	return &TokenSource{src: t.src, username: username}
}

func (t *TokenSource) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	if err := ctx.Err(); err != nil {
		return resilientbridge.Credential{}, err
	}
	tok, err := t.src.Token()
	if err != nil {
		return resilientbridge.Credential{}, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}
	if tok.AccessToken == "" {
		return resilientbridge.Credential{}, fmt.Errorf("%w: empty access token", ErrNoCredentials)
	}
	return credentialFor(tok, t.username), nil
}

// GoogleServiceAccount builds a source from a service account JSON key.
func GoogleServiceAccount(ctx context.Context, jsonKey []byte, scopes ...string) (*TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, jsonKey, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}
	return FromTokenSource(creds.TokenSource), nil
}

// GCR returns registry credentials (oauth2accesstoken:<token>) for Google Container
// Registry and Artifact Registry.
func GCR(ctx context.Context, jsonKey []byte) (*TokenSource, error) {
	ts, err := GoogleServiceAccount(ctx, jsonKey, GCRScope)
	if err != nil {
		return nil, err
	}
	return ts.AsBasic(GCRUsername), nil
}

// ClientCredentials runs the OAuth2 client-credentials grant (HubSpot and Linear apps,
// Azure service principals with a secret).
type ClientCredentials struct {
	cfg    clientcredentials.Config
	client *http.Client
	cache  tokenCache
}

// ClientCredentialsOption configures a ClientCredentials source.
type ClientCredentialsOption func(*ClientCredentials)

// WithTokenHTTPClient sets the client used to reach the token endpoint.
func WithTokenHTTPClient(client *http.Client) ClientCredentialsOption {
	return func(c *ClientCredentials) { c.client = client }
}

func NewClientCredentials(cfg clientcredentials.Config, opts ...ClientCredentialsOption) *ClientCredentials {
	c := &ClientCredentials{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	c.cache.fetch = func(ctx context.Context) (*oauth2.Token, error) {
		log.WithFields(log.Fields{"token_url": c.cfg.TokenURL, "client_id": c.cfg.ClientID}).Debug("Requesting client credentials token")
		tok, err := c.cfg.Token(withHTTPClient(ctx, c.client))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
		}
		return tok, nil
	}
	return c
}

func (c *ClientCredentials) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	tok, err := c.cache.get(ctx)
	if err != nil {
		return resilientbridge.Credential{}, err
	}
	return credentialFor(tok, ""), nil
}

// Invalidate forces a new token on the next resolve, e.g. after a 401.
func (c *ClientCredentials) Invalidate() {
	c.cache.invalidate()
}

func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
