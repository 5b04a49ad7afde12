// credentials/azure.go
// --------------------
// AzureServicePrincipal acquires Microsoft Entra ID tokens with the client-credentials
// grant, authenticating either with a client secret or with a certificate. Certificate
// authentication signs a short-lived JWT client assertion (RS256, x5t thumbprint header)
// for every token request.
package credentials

import (
	"context"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/pkcs12"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	DefaultAzureAuthorityHost = "https://login.microsoftonline.com"
	// DefaultAzureScope targets Azure Resource Manager.
	DefaultAzureScope = "https://management.azure.com/.default"

	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionLifetime   = 5 * time.Minute
)

// AzureConfig holds a service principal. Set either ClientSecret, or Certificate and
// PrivateKey.
type AzureConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Certificate  *x509.Certificate
	PrivateKey   *rsa.PrivateKey
	// AuthorityHost defaults to DefaultAzureAuthorityHost.
	AuthorityHost string
	// Scope defaults to DefaultAzureScope.
	Scope string
}

// AzureServicePrincipal resolves to a Bearer token for the configured scope.
type AzureServicePrincipal struct {
	cfg      AzureConfig
	tokenURL string
	client   *http.Client
	now      func() time.Time
	cache    tokenCache
}

// NewAzureServicePrincipal validates cfg and fills in defaults. client may be nil.
func NewAzureServicePrincipal(cfg AzureConfig, client *http.Client) (*AzureServicePrincipal, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" {
		return nil, errors.New("azure: tenant id and client id are required")
	}
	useCert := cfg.Certificate != nil || cfg.PrivateKey != nil
	switch {
	case useCert && (cfg.Certificate == nil || cfg.PrivateKey == nil):
		return nil, errors.New("azure: certificate authentication needs both certificate and private key")
	case !useCert && cfg.ClientSecret == "":
		return nil, errors.New("azure: either a client secret or a certificate is required")
	}
	if cfg.AuthorityHost == "" {
		cfg.AuthorityHost = DefaultAzureAuthorityHost
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultAzureScope
	}

	s := &AzureServicePrincipal{
		cfg:      cfg,
		tokenURL: fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(cfg.AuthorityHost, "/"), url.PathEscape(cfg.TenantID)),
		client:   client,
		now:      time.Now,
	}
	s.cache.fetch = s.fetch
	return s, nil
}

// TokenURL is the v2 token endpoint of the tenant.
func (s *AzureServicePrincipal) TokenURL() string {
	return s.tokenURL
}

func (s *AzureServicePrincipal) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	tok, err := s.cache.get(ctx)
	if err != nil {
		return resilientbridge.Credential{}, err
	}
	return credentialFor(tok, ""), nil
}

func (s *AzureServicePrincipal) fetch(ctx context.Context) (*oauth2.Token, error) {
	cc := clientcredentials.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		TokenURL:     s.tokenURL,
		Scopes:       []string{s.cfg.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if s.cfg.Certificate != nil {
		assertion, err := s.clientAssertion()
		if err != nil {
			return nil, err
		}
		cc.ClientSecret = ""
		cc.EndpointParams = url.Values{
			"client_assertion_type": {clientAssertionType},
			"client_assertion":      {assertion},
		}
	}
	tok, err := cc.Token(withHTTPClient(ctx, s.client))
	if err != nil {
		return nil, fmt.Errorf("%w: azure: %w", ErrTokenExchange, err)
	}
	return tok, nil
}

func (s *AzureServicePrincipal) clientAssertion() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{s.tokenURL},
		Issuer:    s.cfg.ClientID,
		Subject:   s.cfg.ClientID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["x5t"] = CertificateThumbprint(s.cfg.Certificate)

	signed, err := token.SignedString(s.cfg.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("azure: signing client assertion: %w", err)
	}
	return signed, nil
}

// CertificateThumbprint is the base64url SHA-1 digest of the DER certificate.
func CertificateThumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// LoadPFX decodes a PKCS#12 bundle holding an RSA key and its certificate.
func LoadPFX(data []byte, password string) (*rsa.PrivateKey, *x509.Certificate, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding pkcs12: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("pkcs12 private key is %T, not RSA", key)
	}
	return rsaKey, cert, nil
}
