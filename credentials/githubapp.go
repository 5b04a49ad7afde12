// credentials/githubapp.go
// ------------------------
// GitHub App authentication. GitHubApp signs a new RS256 app JWT on every resolve
// (valid for nine minutes, backdated one minute for clock drift). GitHubInstallation
// exchanges that JWT for an installation access token and caches it until shortly
// before its expiry.
package credentials

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	GitHubAPIURL = "https://api.github.com"

	appJWTLifetime = 9 * time.Minute
	appJWTBackdate = time.Minute
)

// GitHubApp mints app JWTs.
type GitHubApp struct {
	appID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewGitHubApp parses the PEM private key downloaded from the app settings.
func NewGitHubApp(appID string, privateKeyPEM []byte) (*GitHubApp, error) {
	if appID == "" {
		return nil, errors.New("github app: app id is required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("github app: parsing private key: %w", err)
	}
	return &GitHubApp{appID: appID, key: key, now: time.Now}, nil
}

// JWT returns a freshly signed app token.
func (a *GitHubApp) JWT() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("github app: signing jwt: %w", err)
	}
	return signed, nil
}

func (a *GitHubApp) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	if err := ctx.Err(); err != nil {
		return resilientbridge.Credential{}, err
	}
	token, err := a.JWT()
	if err != nil {
		return resilientbridge.Credential{}, err
	}
	return resilientbridge.Credential{Scheme: resilientbridge.SchemeBearer, Token: token}, nil
}

// GitHubInstallation resolves to an installation access token.
type GitHubInstallation struct {
	app            *GitHubApp
	installationID int64
	baseURL        string
	client         *http.Client
	cache          tokenCache
}

// InstallationOption configures a GitHubInstallation.
type InstallationOption func(*GitHubInstallation)

// WithGitHubBaseURL points the exchange at GitHub Enterprise Server.
func WithGitHubBaseURL(baseURL string) InstallationOption {
	return func(g *GitHubInstallation) { g.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithInstallationHTTPClient sets the client used for the exchange.
func WithInstallationHTTPClient(client *http.Client) InstallationOption {
	return func(g *GitHubInstallation) { g.client = client }
}

// Installation returns a source for one installation of the app.
func (a *GitHubApp) Installation(installationID int64, opts ...InstallationOption) *GitHubInstallation {
	g := &GitHubInstallation{
		app:            a,
		installationID: installationID,
		baseURL:        GitHubAPIURL,
		client:         http.DefaultClient,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cache.fetch = g.exchange
	return g
}

func (g *GitHubInstallation) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	tok, err := g.cache.get(ctx)
	if err != nil {
		return resilientbridge.Credential{}, err
	}
	return credentialFor(tok, ""), nil
}

type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (g *GitHubInstallation) exchange(ctx context.Context) (*oauth2.Token, error) {
	appToken, err := g.app.JWT()
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", g.baseURL, g.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+appToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	log.WithFields(log.Fields{"installation": g.installationID}).Debug("Exchanging GitHub app JWT for an installation token")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: github installation %d: %w", ErrTokenExchange, g.installationID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrTokenExchange, err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: github installation %d: status %d: %s", ErrTokenExchange, g.installationID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out installationTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrTokenExchange, err)
	}
	return &oauth2.Token{AccessToken: out.Token, TokenType: "token", Expiry: out.ExpiresAt}, nil
}
