package credentials_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
	"github.com/opengovern/resilient-bridge/v2/credentials"
)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func pkcs8PEM(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// tokenServer issues numbered tokens and counts requests.
func tokenServer(t *testing.T, check func(r *http.Request)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClientCredentials_CachesToken(t *testing.T) {
	t.Parallel()

	srv, calls := tokenServer(t, func(r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "crm.objects.contacts.read", r.PostForm.Get("scope"))
	})
	src := credentials.NewClientCredentials(clientcredentials.Config{
		ClientID:     "app",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/oauth/v1/token",
		Scopes:       []string{"crm.objects.contacts.read"},
	}, credentials.WithTokenHTTPClient(srv.Client()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, "Bearer tok-1", applied(t, src).Get("Authorization"))
	}
	assert.EqualValues(t, 1, calls.Load())

	src.Invalidate()
	assert.Equal(t, "Bearer tok-2", applied(t, src).Get("Authorization"))
	assert.EqualValues(t, 2, calls.Load())
}

func TestClientCredentials_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	src := credentials.NewClientCredentials(clientcredentials.Config{ClientID: "a", ClientSecret: "b", TokenURL: srv.URL},
		credentials.WithTokenHTTPClient(srv.Client()))
	_, err := src.Resolve(context.Background())
	assert.ErrorIs(t, err, credentials.ErrTokenExchange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Resolve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenSource(t *testing.T) {
	t.Parallel()

	src := credentials.FromTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.static"}))
	assert.Equal(t, "Bearer ya29.static", applied(t, src).Get("Authorization"))

	cred, err := src.AsBasic(credentials.GCRUsername).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resilientbridge.SchemeBasic, cred.Scheme)
	assert.Equal(t, "oauth2accesstoken", cred.Username)
	assert.Equal(t, "ya29.static", cred.Password)

	_, err = credentials.FromTokenSource(oauth2.StaticTokenSource(&oauth2.Token{})).Resolve(context.Background())
	assert.Error(t, err)
}

func TestGCR(t *testing.T) {
	t.Parallel()

	srv, calls := tokenServer(t, func(r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))
		assert.NotEmpty(t, r.PostForm.Get("assertion"))
	})
	key, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "bridge-test",
		"private_key_id": "k1",
		"private_key":    string(pkcs8PEM(t, newRSAKey(t))),
		"client_email":   "puller@bridge-test.iam.gserviceaccount.com",
		"client_id":      "123",
		"token_uri":      srv.URL,
	})
	require.NoError(t, err)

	src, err := credentials.GCR(context.Background(), key)
	require.NoError(t, err)
	cred, err := src.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, credentials.GCRUsername, cred.Username)
	assert.Equal(t, "tok-1", cred.Password)

	_, err = src.Resolve(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load(), "token is reused while valid")

	_, err = credentials.GCR(context.Background(), []byte(`{"type":"nonsense"}`))
	assert.Error(t, err)
}
