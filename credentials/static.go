// credentials/static.go
// ---------------------
// Package credentials provides the CredentialSource implementations used by the
// adapters: fixed tokens, OAuth2 token sources, Azure service principals, GitHub App
// tokens and container registry keychains. Every source is resolved once per attempt,
// so sources that talk to a token endpoint cache their token until it expires.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

var (
	// ErrNoCredentials is returned when a source has nothing to offer.
	ErrNoCredentials = errors.New("no credentials available")
	// ErrTokenExchange is returned when a token endpoint refuses the exchange.
	ErrTokenExchange = errors.New("token exchange failed")
)

// Static always resolves to the same credential.
type Static resilientbridge.Credential

func (s Static) Resolve(context.Context) (resilientbridge.Credential, error) {
	return resilientbridge.Credential(s), nil
}

// Bearer sends "Authorization: Bearer <token>".
func Bearer(token string) Static {
	return Static{Scheme: resilientbridge.SchemeBearer, Token: token}
}

// Basic sends HTTP basic authentication.
func Basic(username, password string) Static {
	return Static{Scheme: resilientbridge.SchemeBasic, Username: username, Password: password}
}

// Header sends value verbatim in the named header, e.g. Header("X-Api-Key", key).
func Header(name, value string) Static {
	return Static{Scheme: resilientbridge.SchemeHeader, HeaderName: name, Token: value}
}

// AuthorizationScheme sends "Authorization: <scheme> <token>" for APIs that do not use
// the Bearer keyword (GitGuardian uses "Token").
func AuthorizationScheme(scheme, token string) Static {
	return Header("Authorization", scheme+" "+token)
}

// BearerFromEnv reads the token from an environment variable at resolve time.
func BearerFromEnv(name string) resilientbridge.CredentialSource {
	return resilientbridge.CredentialFunc(func(context.Context) (resilientbridge.Credential, error) {
		token := os.Getenv(name)
		if token == "" {
			return resilientbridge.Credential{}, fmt.Errorf("%w: %s is not set", ErrNoCredentials, name)
		}
		return resilientbridge.Credential{Scheme: resilientbridge.SchemeBearer, Token: token}, nil
	})
}
