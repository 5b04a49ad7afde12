// credentials/registry.go
// -----------------------
// Container registry credentials. Keychain asks a go-containerregistry keychain (docker
// config, credential helpers) and OrasStore asks an oras credential store. Both map the
// registry's auth config onto a bridge Credential:
//   - registry token or access token: Bearer
//   - username and password: Basic
//   - identity (refresh) token: Basic with the "<token>" user, as docker does
//   - anonymous: no credential
package credentials

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"oras.land/oras-go/v2/registry/remote/auth"
	orascreds "oras.land/oras-go/v2/registry/remote/credentials"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

// identityTokenUser is the username docker pairs with an identity token.
const identityTokenUser = "<token>"

// Keychain resolves credentials for one registry from an authn.Keychain.
type Keychain struct {
	keychain authn.Keychain
	registry string
}

// NewKeychain uses authn.DefaultKeychain when kc is nil. registry is a host such as
// "ghcr.io" or "docker.io".
func NewKeychain(registry string, kc authn.Keychain) *Keychain {
	if kc == nil {
		kc = authn.DefaultKeychain
	}
	return &Keychain{keychain: kc, registry: registry}
}

func (k *Keychain) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	if err := ctx.Err(); err != nil {
		return resilientbridge.Credential{}, err
	}
	reg, err := name.NewRegistry(k.registry)
	if err != nil {
		return resilientbridge.Credential{}, fmt.Errorf("invalid registry %q: %w", k.registry, err)
	}
	authenticator, err := k.keychain.Resolve(reg)
	if err != nil {
		return resilientbridge.Credential{}, fmt.Errorf("%w: keychain lookup for %s: %w", ErrNoCredentials, reg.RegistryStr(), err)
	}
	cfg, err := authenticator.Authorization()
	if err != nil {
		return resilientbridge.Credential{}, fmt.Errorf("%w: %s: %w", ErrNoCredentials, reg.RegistryStr(), err)
	}
	return fromAuthConfig(cfg)
}

func fromAuthConfig(cfg *authn.AuthConfig) (resilientbridge.Credential, error) {
	if cfg == nil {
		return resilientbridge.Credential{}, nil
	}
	switch {
	case cfg.RegistryToken != "":
		return resilientbridge.Credential{Scheme: resilientbridge.SchemeBearer, Token: cfg.RegistryToken}, nil
	case cfg.Username != "" || cfg.Password != "":
		return resilientbridge.Credential{Scheme: resilientbridge.SchemeBasic, Username: cfg.Username, Password: cfg.Password}, nil
	case cfg.IdentityToken != "":
		return resilientbridge.Credential{Scheme: resilientbridge.SchemeBasic, Username: identityTokenUser, Password: cfg.IdentityToken}, nil
	case cfg.Auth != "":
		raw, err := base64.StdEncoding.DecodeString(cfg.Auth)
		if err != nil {
			return resilientbridge.Credential{}, fmt.Errorf("decoding registry auth: %w", err)
		}
		user, pass, ok := strings.Cut(string(raw), ":")
		if !ok {
			return resilientbridge.Credential{}, fmt.Errorf("registry auth is not user:password")
		}
		return resilientbridge.Credential{Scheme: resilientbridge.SchemeBasic, Username: user, Password: pass}, nil
	}
	return resilientbridge.Credential{}, nil
}

// CredentialStore is the lookup side of an oras credentials.Store.
type CredentialStore interface {
	Get(ctx context.Context, serverAddress string) (auth.Credential, error)
}

// OrasStore resolves credentials for one registry from an oras credential store.
type OrasStore struct {
	store  CredentialStore
	server string
}

func NewOrasStore(server string, store CredentialStore) *OrasStore {
	return &OrasStore{store: store, server: server}
}

// NewDockerConfigStore reads the docker config file ($DOCKER_CONFIG or ~/.docker) and
// its configured credential helpers.
func NewDockerConfigStore(server string) (*OrasStore, error) {
	store, err := orascreds.NewStoreFromDocker(orascreds.StoreOptions{})
	if err != nil {
		return nil, fmt.Errorf("loading docker credential store: %w", err)
	}
	return NewOrasStore(server, store), nil
}

func (o *OrasStore) Resolve(ctx context.Context) (resilientbridge.Credential, error) {
	if err := ctx.Err(); err != nil {
		return resilientbridge.Credential{}, err
	}
	cred, err := o.store.Get(ctx, o.server)
	if err != nil {
		return resilientbridge.Credential{}, fmt.Errorf("%w: credential store lookup for %s: %w", ErrNoCredentials, o.server, err)
	}
	switch {
	case cred == auth.EmptyCredential:
		return resilientbridge.Credential{}, nil
	case cred.AccessToken != "":
		return resilientbridge.Credential{Scheme: resilientbridge.SchemeBearer, Token: cred.AccessToken}, nil
	case cred.RefreshToken != "":
		return resilientbridge.Credential{Scheme: resilientbridge.SchemeBasic, Username: identityTokenUser, Password: cred.RefreshToken}, nil
	}
	return resilientbridge.Credential{Scheme: resilientbridge.SchemeBasic, Username: cred.Username, Password: cred.Password}, nil
}
