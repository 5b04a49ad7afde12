package credentials_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
	"github.com/opengovern/resilient-bridge/v2/credentials"
)

func applied(t *testing.T, src resilientbridge.CredentialSource) http.Header {
	t.Helper()
	cred, err := src.Resolve(context.Background())
	require.NoError(t, err)
	h := http.Header{}
	cred.Apply(h)
	return h
}

func TestStaticSources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    resilientbridge.CredentialSource
		header string
		want   string
	}{
		{"bearer", credentials.Bearer("ghp_abc"), "Authorization", "Bearer ghp_abc"},
		{"basic", credentials.Basic("user", "pass"), "Authorization", "Basic dXNlcjpwYXNz"},
		{"api key header", credentials.Header("X-Api-Key", "k-1"), "X-Api-Key", "k-1"},
		{"token scheme", credentials.AuthorizationScheme("Token", "gg"), "Authorization", "Token gg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, applied(t, tt.src).Get(tt.header))
		})
	}
}

func TestBearerFromEnv(t *testing.T) {
	src := credentials.BearerFromEnv("BRIDGE_TEST_TOKEN")

	t.Setenv("BRIDGE_TEST_TOKEN", "")
	_, err := src.Resolve(context.Background())
	assert.ErrorIs(t, err, credentials.ErrNoCredentials)

	t.Setenv("BRIDGE_TEST_TOKEN", "from-env")
	assert.Equal(t, "Bearer from-env", applied(t, src).Get("Authorization"))
}
