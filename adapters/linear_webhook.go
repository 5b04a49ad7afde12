// linear_webhook.go
// -----------------
// LinearWebhook receives data change and notification webhooks.
//
//   - Event type: "type" ("Issue", "Comment", "Project", ...), also sent in Linear-Event.
//   - Action: "action" ("create", "update", "remove"), routed as {type}{Action} too,
//     e.g. "IssueCreate".
//   - Signature: Linear-Signature = hex HMAC-SHA256 of the raw body.
//   - Replay: the body's webhookTimestamp (epoch ms) must be within a minute of now.
//   - Delivery: Linear-Delivery.
package adapters

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/opengovern/resilient-bridge/v2/webhook"
)

const (
	LinearSignatureHeader = "Linear-Signature"
	LinearEventHeader     = "Linear-Event"
	LinearDeliveryHeader  = "Linear-Delivery"

	// LinearTolerance bounds the age of webhookTimestamp.
	LinearTolerance = time.Minute
)

// LinearScheme checks the body HMAC and then the timestamp embedded in the body.
type LinearScheme struct {
	Secret    string
	Tolerance time.Duration
}

func (s LinearScheme) Configured() bool { return s.Secret != "" }

func (s LinearScheme) Verify(r *webhook.Request, now time.Time) error {
	hmacScheme := webhook.HMACHexScheme{Header: LinearSignatureHeader, Secret: s.Secret}
	if err := hmacScheme.Verify(r, now); err != nil {
		return err
	}
	ts := webhook.StringField(webhook.ParsePayload(r.Body).Value, "webhookTimestamp")
	if ts == "" {
		return nil
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: webhookTimestamp %q", webhook.ErrInvalidTimestamp, ts)
	}
	tolerance := s.Tolerance
	if tolerance <= 0 {
		tolerance = LinearTolerance
	}
	if d := now.Sub(time.UnixMilli(ms)); d > tolerance || d < -tolerance {
		return webhook.ErrTimestampExpired
	}
	return nil
}

type LinearWebhook struct {
	secret string
}

var (
	_ webhook.Provider           = (*LinearWebhook)(nil)
	_ webhook.DeliveryIdentifier = (*LinearWebhook)(nil)
)

func NewLinearWebhook(secret string) *LinearWebhook {
	return &LinearWebhook{secret: secret}
}

func (l *LinearWebhook) Name() string { return ProviderLinear }

func (l *LinearWebhook) Match(r *webhook.Request) bool {
	return r.Header.Get(LinearSignatureHeader) != "" || r.Header.Get(LinearEventHeader) != ""
}

func (l *LinearWebhook) Identify(r *webhook.Request, p webhook.Payload) string {
	if t := webhook.StringField(p.Value, "type"); t != "" {
		return t
	}
	return r.Header.Get(LinearEventHeader)
}

func (l *LinearWebhook) Verifier() webhook.Verifier {
	return LinearScheme{Secret: l.secret}
}

func (l *LinearWebhook) Handshake(*webhook.Request, webhook.Payload) (*webhook.Handshake, bool) {
	return nil, false
}

func (l *LinearWebhook) Events(r *webhook.Request, p webhook.Payload) ([]webhook.Event, error) {
	if p.Object() == nil {
		return nil, webhook.ErrInvalidPayload
	}
	return []webhook.Event{{
		Type:   l.Identify(r, p),
		Action: webhook.StringField(p.Value, "action"),
		Raw:    json.RawMessage(p.Raw),
	}}, nil
}

func (l *LinearWebhook) SplitsActions() bool { return true }

func (l *LinearWebhook) DeliveryID(r *webhook.Request, _ webhook.Payload) string {
	return r.Header.Get(LinearDeliveryHeader)
}
