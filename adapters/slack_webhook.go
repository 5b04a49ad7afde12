// slack_webhook.go
// ----------------
// SlackWebhook receives Events API callbacks, interactivity payloads and slash commands.
//
//   - Signature: X-Slack-Signature = "v0=" + hex HMAC-SHA256 of "v0:{ts}:{body}" with
//     ts from X-Slack-Request-Timestamp; requests older than five minutes are rejected.
//   - url_verification: answered with the echoed challenge, no handlers run.
//   - event_callback: routed by the inner event type ("app_mention", "message", ...);
//     the message subtype, when present, becomes the action.
//   - Interactivity: a form field "payload" holding JSON, routed by its "type"
//     ("block_actions", "view_submission", ...).
//   - Slash commands: a form with a "command" field, routed as "slash_command" with the
//     command as the action.
package adapters

import (
	"bytes"
	"encoding/json"
	"net/url"

	"github.com/opengovern/resilient-bridge/v2/webhook"
)

const (
	SlackSignatureHeader = "X-Slack-Signature"
	SlackTimestampHeader = "X-Slack-Request-Timestamp"

	SlackURLVerification = "url_verification"
	SlackEventCallback   = "event_callback"
	SlackSlashCommand    = "slash_command"
)

type SlackWebhook struct {
	signingSecret string
}

var (
	_ webhook.Provider           = (*SlackWebhook)(nil)
	_ webhook.DeliveryIdentifier = (*SlackWebhook)(nil)
)

func NewSlackWebhook(signingSecret string) *SlackWebhook {
	return &SlackWebhook{signingSecret: signingSecret}
}

func (s *SlackWebhook) Name() string { return ProviderSlack }

func (s *SlackWebhook) Match(r *webhook.Request) bool {
	return r.Header.Get(SlackSignatureHeader) != "" || r.Header.Get(SlackTimestampHeader) != ""
}

// slackEnvelope is the part of a Slack body needed for routing.
type slackEnvelope struct {
	kind   string
	action string
	raw    json.RawMessage
}

// parseSlack never fails; an unknown body yields an empty envelope.
func parseSlack(r *webhook.Request, p webhook.Payload) slackEnvelope {
	if obj := p.Object(); obj != nil {
		env := slackEnvelope{kind: webhook.StringField(obj, "type"), raw: json.RawMessage(p.Raw)}
		if env.kind == SlackEventCallback {
			env.kind = webhook.StringField(obj, "event", "type")
			env.action = webhook.StringField(obj, "event", "subtype")
		}
		return env
	}
	if !bytes.Contains(r.Body, []byte("=")) {
		return slackEnvelope{}
	}
	form, err := url.ParseQuery(string(r.Body))
	if err != nil {
		return slackEnvelope{}
	}
	if payload := form.Get("payload"); payload != "" {
		inner := webhook.ParsePayload([]byte(payload))
		return slackEnvelope{
			kind:   webhook.StringField(inner.Value, "type"),
			action: webhook.StringField(inner.Value, "callback_id"),
			raw:    json.RawMessage(payload),
		}
	}
	if cmd := form.Get("command"); cmd != "" {
		fields := make(map[string]string, len(form))
		for k := range form {
			fields[k] = form.Get(k)
		}
		raw, _ := json.Marshal(fields)
		return slackEnvelope{kind: SlackSlashCommand, action: cmd, raw: raw}
	}
	return slackEnvelope{}
}

func (s *SlackWebhook) Identify(r *webhook.Request, p webhook.Payload) string {
	return parseSlack(r, p).kind
}

func (s *SlackWebhook) Verifier() webhook.Verifier {
	return webhook.TimestampedHMACScheme{
		SignatureHeader: SlackSignatureHeader,
		TimestampHeader: SlackTimestampHeader,
		Secret:          s.signingSecret,
		Tolerance:       webhook.DefaultTolerance,
	}
}

func (s *SlackWebhook) Handshake(_ *webhook.Request, p webhook.Payload) (*webhook.Handshake, bool) {
	obj := p.Object()
	if webhook.StringField(obj, "type") != SlackURLVerification {
		return nil, false
	}
	return &webhook.Handshake{Challenge: webhook.StringField(obj, "challenge")}, true
}

func (s *SlackWebhook) Events(r *webhook.Request, p webhook.Payload) ([]webhook.Event, error) {
	env := parseSlack(r, p)
	if len(env.raw) == 0 {
		return nil, webhook.ErrInvalidPayload
	}
	return []webhook.Event{{Type: env.kind, Action: env.action, Raw: env.raw}}, nil
}

func (s *SlackWebhook) SplitsActions() bool { return false }

// DeliveryID is the Events API event_id.
func (s *SlackWebhook) DeliveryID(_ *webhook.Request, p webhook.Payload) string {
	return webhook.StringField(p.Value, "event_id")
}
