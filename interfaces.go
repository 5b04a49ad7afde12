package resilientbridge

import (
	"context"
	"encoding/base64"
	"net/http"
)

// ProviderAdapter defines the interface all adapters must implement. An adapter is a
// small policy object: where the API lives, which headers it always needs, how it
// authenticates and how it signals throttling.
type ProviderAdapter interface {
	BaseURL() string
	DefaultHeaders() map[string]string
	RateLimitConfig() RateLimitConfig

	// Credentials returns the source resolved before every attempt, or nil for
	// unauthenticated APIs.
	Credentials() CredentialSource
}

// CredentialScheme selects how a Credential is written onto a request.
type CredentialScheme int

const (
	SchemeNone CredentialScheme = iota
	// SchemeBearer sends "Authorization: Bearer <token>".
	SchemeBearer
	// SchemeBasic sends "Authorization: Basic base64(user:pass)".
	SchemeBasic
	// SchemeHeader sends the token verbatim in HeaderName.
	SchemeHeader
)

// Credential is one resolved set of request credentials.
type Credential struct {
	Scheme     CredentialScheme
	Token      string
	Username   string
	Password   string
	HeaderName string
}

// Apply writes the credential onto h.
func (c Credential) Apply(h http.Header) {
	switch c.Scheme {
	case SchemeBearer:
		if c.Token != "" {
			h.Set("Authorization", "Bearer "+c.Token)
		}
	case SchemeBasic:
		if c.Username != "" || c.Password != "" {
			raw := c.Username + ":" + c.Password
			h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(raw)))
		}
	case SchemeHeader:
		if c.HeaderName != "" && c.Token != "" {
			h.Set(c.HeaderName, c.Token)
		}
	}
}

// CredentialSource resolves credentials. Resolution may block, for example on a token
// endpoint or a credential helper, and runs once per attempt.
type CredentialSource interface {
	Resolve(ctx context.Context) (Credential, error)
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(ctx context.Context) (Credential, error)

func (f CredentialFunc) Resolve(ctx context.Context) (Credential, error) {
	return f(ctx)
}

// HeaderSource produces extra headers per attempt.
type HeaderSource func(ctx context.Context) (map[string]string, error)
