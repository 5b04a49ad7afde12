// registry_adapter.go
// -------------------
// This adapter integrates with OCI distribution registries (Docker Hub, GHCR, ACR, GCR).
//
// Docker Hub limits manifest pulls per six hour window and reports it as
//
//	ratelimit-limit: 100;w=21600
//	ratelimit-remaining: 76;w=21600
//
// Only the leading count is used. There is no reset header, so a 429 (TOOMANYREQUESTS)
// backs off exponentially, capped at one minute. Credentials usually come from
// credentials.Keychain or credentials.OrasStore.
package adapters

import (
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/v1/types"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	DockerHubRegistryURL = "https://registry-1.docker.io"

	RegistryLimitHeader     = "RateLimit-Limit"
	RegistryRemainingHeader = "RateLimit-Remaining"
)

// ManifestAccept lists the manifest media types a pull accepts, most specific first.
var ManifestAccept = strings.Join([]string{
	string(types.OCIImageIndex),
	string(types.OCIManifestSchema1),
	string(types.DockerManifestList),
	string(types.DockerManifestSchema2),
}, ", ")

// NewRegistryAdapter targets any registry root, e.g. "https://ghcr.io".
func NewRegistryAdapter(registryURL string, creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = RegistryLimitHeader
	limits.RemainingHeader = RegistryRemainingHeader
	limits.ResetHeader = ""
	limits.MaxBackoff = time.Minute
	headers := map[string]string{"Accept": ManifestAccept}
	return newAdapter(strings.TrimRight(registryURL, "/"), headers, limits, creds, opts)
}

func NewDockerHubAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	return NewRegistryAdapter(DockerHubRegistryURL, creds, opts...)
}

// ManifestRequest describes GET /v2/{repository}/manifests/{reference}. repository may
// contain slashes ("library/alpine").
func ManifestRequest(repository, reference string) *resilientbridge.RequestDescription {
	return &resilientbridge.RequestDescription{
		Method: "GET",
		URL:    "/v2/" + strings.Trim(repository, "/") + "/manifests/{reference}",
		PathParams: map[string]string{
			"reference": reference,
		},
		ErrorLabels: map[int]string{
			401: "unauthorized",
			404: "manifest unknown",
		},
	}
}
