package credentials_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/resilient-bridge/v2/credentials"
)

func selfSignedCert(t *testing.T, key *rsa.PrivateKey) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "bridge-spn"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestNewAzureServicePrincipal_Validation(t *testing.T) {
	t.Parallel()

	key := newRSAKey(t)
	cert := selfSignedCert(t, key)

	tests := []struct {
		name    string
		cfg     credentials.AzureConfig
		wantErr bool
	}{
		{"secret", credentials.AzureConfig{TenantID: "t", ClientID: "c", ClientSecret: "s"}, false},
		{"certificate", credentials.AzureConfig{TenantID: "t", ClientID: "c", Certificate: cert, PrivateKey: key}, false},
		{"missing tenant", credentials.AzureConfig{ClientID: "c", ClientSecret: "s"}, true},
		{"no secret or certificate", credentials.AzureConfig{TenantID: "t", ClientID: "c"}, true},
		{"certificate without key", credentials.AzureConfig{TenantID: "t", ClientID: "c", Certificate: cert}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spn, err := credentials.NewAzureServicePrincipal(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://login.microsoftonline.com/t/oauth2/v2.0/token", spn.TokenURL())
		})
	}
}

func TestAzureServicePrincipal_Secret(t *testing.T) {
	t.Parallel()

	srv, calls := tokenServer(t, func(r *http.Request) {
		assert.Equal(t, "/tenant-1/oauth2/v2.0/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "s3cret", r.PostForm.Get("client_secret"))
		assert.Equal(t, credentials.DefaultAzureScope, r.PostForm.Get("scope"))
	})
	spn, err := credentials.NewAzureServicePrincipal(credentials.AzureConfig{
		TenantID:      "tenant-1",
		ClientID:      "client-1",
		ClientSecret:  "s3cret",
		AuthorityHost: srv.URL,
	}, srv.Client())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", applied(t, spn).Get("Authorization"))
	assert.Equal(t, "Bearer tok-1", applied(t, spn).Get("Authorization"))
	assert.EqualValues(t, 1, calls.Load())
}

func TestAzureServicePrincipal_Certificate(t *testing.T) {
	t.Parallel()

	key := newRSAKey(t)
	cert := selfSignedCert(t, key)
	var tokenURL string

	srv, _ := tokenServer(t, func(r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Empty(t, r.PostForm.Get("client_secret"))
		assert.Equal(t, "urn:ietf:params:oauth:client-assertion-type:jwt-bearer", r.PostForm.Get("client_assertion_type"))

		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(r.PostForm.Get("client_assertion"), claims, func(tok *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		})
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "RS256", parsed.Method.Alg())
		assert.Equal(t, credentials.CertificateThumbprint(cert), parsed.Header["x5t"])
		assert.Equal(t, "client-1", claims.Issuer)
		assert.Equal(t, "client-1", claims.Subject)
		assert.True(t, claims.VerifyAudience(tokenURL, true))
		assert.NotEmpty(t, claims.ID)
	})
	spn, err := credentials.NewAzureServicePrincipal(credentials.AzureConfig{
		TenantID:      "tenant-1",
		ClientID:      "client-1",
		Certificate:   cert,
		PrivateKey:    key,
		AuthorityHost: srv.URL,
		Scope:         "https://containerregistry.azure.net/.default",
	}, srv.Client())
	require.NoError(t, err)
	tokenURL = spn.TokenURL()

	cred, err := spn.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cred.Token)
}

func TestLoadPFX_Invalid(t *testing.T) {
	t.Parallel()

	_, _, err := credentials.LoadPFX([]byte("not a pfx"), "")
	assert.Error(t, err)
}
