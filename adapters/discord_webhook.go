// discord_webhook.go
// ------------------
// DiscordWebhook receives interactions (slash commands, components, modals) and
// webhook events (application authorized, entitlement created, ...).
//
//   - Signature: X-Signature-Ed25519 = hex Ed25519 signature of timestamp + body, with
//     the timestamp from X-Signature-Timestamp, checked against the application's
//     public key (hex).
//   - Interaction PING (type 1) is the endpoint validation probe: it is answered with
//     {"type":1} and no handlers run. Webhook event PING (type 0) is answered the same
//     way with an empty body.
//   - Interactions are routed by type name ("APPLICATION_COMMAND", ...) with the command
//     name or component custom_id as the action; webhook events by the inner event type.
package adapters

import (
	"encoding/json"

	"github.com/opengovern/resilient-bridge/v2/webhook"
)

const (
	DiscordSignatureHeader = "X-Signature-Ed25519"
	DiscordTimestampHeader = "X-Signature-Timestamp"

	DiscordPing = "PING"
)

var discordInteractionTypes = map[string]string{
	"1": DiscordPing,
	"2": "APPLICATION_COMMAND",
	"3": "MESSAGE_COMPONENT",
	"4": "APPLICATION_COMMAND_AUTOCOMPLETE",
	"5": "MODAL_SUBMIT",
}

// discordPong is the interaction response to a PING.
var discordPong = map[string]int{"type": 1}

type DiscordWebhook struct {
	publicKey string
}

var (
	_ webhook.Provider           = (*DiscordWebhook)(nil)
	_ webhook.DeliveryIdentifier = (*DiscordWebhook)(nil)
)

// NewDiscordWebhook takes the application's hex encoded Ed25519 public key.
func NewDiscordWebhook(publicKey string) *DiscordWebhook {
	return &DiscordWebhook{publicKey: publicKey}
}

func (d *DiscordWebhook) Name() string { return ProviderDiscord }

func (d *DiscordWebhook) Match(r *webhook.Request) bool {
	return r.Header.Get(DiscordSignatureHeader) != ""
}

// isEventEnvelope reports whether the body is a webhook event rather than an interaction.
func isEventEnvelope(obj map[string]any) bool {
	_, hasVersion := obj["version"]
	_, hasEvent := obj["event"]
	return hasVersion || hasEvent
}

func (d *DiscordWebhook) Identify(_ *webhook.Request, p webhook.Payload) string {
	obj := p.Object()
	if obj == nil {
		return ""
	}
	kind := webhook.StringField(obj, "type")
	if isEventEnvelope(obj) {
		if kind == "0" {
			return DiscordPing
		}
		return webhook.StringField(obj, "event", "type")
	}
	return discordInteractionTypes[kind]
}

func (d *DiscordWebhook) Verifier() webhook.Verifier {
	return webhook.Ed25519Scheme{
		SignatureHeader: DiscordSignatureHeader,
		TimestampHeader: DiscordTimestampHeader,
		PublicKey:       d.publicKey,
	}
}

func (d *DiscordWebhook) Handshake(r *webhook.Request, p webhook.Payload) (*webhook.Handshake, bool) {
	if d.Identify(r, p) != DiscordPing {
		return nil, false
	}
	if isEventEnvelope(p.Object()) {
		return &webhook.Handshake{Challenge: DiscordPing}, true
	}
	return &webhook.Handshake{Challenge: DiscordPing, Response: discordPong}, true
}

func (d *DiscordWebhook) Events(r *webhook.Request, p webhook.Payload) ([]webhook.Event, error) {
	obj := p.Object()
	if obj == nil {
		return nil, webhook.ErrInvalidPayload
	}
	ev := webhook.Event{Type: d.Identify(r, p), Raw: json.RawMessage(p.Raw)}
	if isEventEnvelope(obj) {
		if inner, ok := obj["event"].(map[string]any); ok && inner["data"] != nil {
			if raw, err := json.Marshal(inner["data"]); err == nil {
				ev.Raw = raw
			}
		}
		return []webhook.Event{ev}, nil
	}
	if name := webhook.StringField(obj, "data", "name"); name != "" {
		ev.Action = name
	} else {
		ev.Action = webhook.StringField(obj, "data", "custom_id")
	}
	return []webhook.Event{ev}, nil
}

func (d *DiscordWebhook) SplitsActions() bool { return false }

// DeliveryID is the interaction id.
func (d *DiscordWebhook) DeliveryID(_ *webhook.Request, p webhook.Payload) string {
	return webhook.StringField(p.Value, "id")
}
