// hubspot_webhook.go
// ------------------
// HubSpotWebhook receives app webhook subscriptions.
//
//   - HubSpot batches: the body is a JSON array of up to 100 events, each routed on its
//     own in array order.
//   - Event type: "subscriptionType" ("contact.creation", "deal.propertyChange", ...);
//     the changed property name, when present, is the action.
//   - Signature (v1): X-HubSpot-Signature = hex SHA-256 of client secret + raw body.
//
// The v2 and v3 schemes sign the request method and URI as well, which a body-only
// request does not carry, so only v1 is verified here.
package adapters

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/opengovern/resilient-bridge/v2/webhook"
)

const (
	HubSpotSignatureHeader = "X-HubSpot-Signature"
	HubSpotVersionHeader   = "X-HubSpot-Signature-Version"
)

// HubSpotV1Scheme verifies the v1 signature.
type HubSpotV1Scheme struct {
	ClientSecret string
}

func (s HubSpotV1Scheme) Configured() bool { return s.ClientSecret != "" }

func (s HubSpotV1Scheme) Verify(r *webhook.Request, _ time.Time) error {
	sig := strings.TrimSpace(r.Header.Get(HubSpotSignatureHeader))
	if sig == "" {
		return fmt.Errorf("%w: %s header not set", webhook.ErrMissingSignature, HubSpotSignatureHeader)
	}
	if v := r.Header.Get(HubSpotVersionHeader); v != "" && !strings.EqualFold(v, "v1") {
		return fmt.Errorf("%w: unsupported signature version %q", webhook.ErrInvalidSignature, v)
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return webhook.ErrInvalidSignature
	}
	want := SignHubSpotV1(r.Body, s.ClientSecret)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return webhook.ErrInvalidSignature
	}
	return nil
}

// SignHubSpotV1 returns the raw v1 digest; hex encode it for the header.
func SignHubSpotV1(body []byte, clientSecret string) []byte {
	h := sha256.New()
	h.Write([]byte(clientSecret))
	h.Write(body)
	return h.Sum(nil)
}

type HubSpotWebhook struct {
	clientSecret string
}

var _ webhook.Provider = (*HubSpotWebhook)(nil)

func NewHubSpotWebhook(clientSecret string) *HubSpotWebhook {
	return &HubSpotWebhook{clientSecret: clientSecret}
}

func (h *HubSpotWebhook) Name() string { return ProviderHubSpot }

// Match accepts signed requests, and unsigned ones whose body looks like a HubSpot batch.
func (h *HubSpotWebhook) Match(r *webhook.Request) bool {
	if r.Header.Get(HubSpotSignatureHeader) != "" || r.Header.Get(HubSpotSignatureHeader+"-v3") != "" {
		return true
	}
	if !strings.HasPrefix(strings.TrimSpace(string(r.Body)), "[") {
		return false
	}
	arr := webhook.ParsePayload(r.Body).Array()
	return len(arr) > 0 && webhook.StringField(arr[0], "subscriptionType") != "" && webhook.StringField(arr[0], "portalId") != ""
}

func (h *HubSpotWebhook) Identify(_ *webhook.Request, p webhook.Payload) string {
	if arr := p.Array(); len(arr) > 0 {
		return webhook.StringField(arr[0], "subscriptionType")
	}
	return webhook.StringField(p.Value, "subscriptionType")
}

func (h *HubSpotWebhook) Verifier() webhook.Verifier {
	return HubSpotV1Scheme{ClientSecret: h.clientSecret}
}

func (h *HubSpotWebhook) Handshake(*webhook.Request, webhook.Payload) (*webhook.Handshake, bool) {
	return nil, false
}

func (h *HubSpotWebhook) Events(_ *webhook.Request, p webhook.Payload) ([]webhook.Event, error) {
	items, err := webhook.RawObjects(p)
	if err != nil {
		return nil, err
	}
	events := make([]webhook.Event, 0, len(items))
	for _, raw := range items {
		item := webhook.ParsePayload(raw)
		events = append(events, webhook.Event{
			Type:   webhook.StringField(item.Value, "subscriptionType"),
			Action: webhook.StringField(item.Value, "propertyName"),
			Raw:    raw,
		})
	}
	return events, nil
}

func (h *HubSpotWebhook) SplitsActions() bool { return false }
