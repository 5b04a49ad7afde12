// github_webhook.go
// -----------------
// GitHubWebhook receives repository and organization webhooks.
//
//   - Event type: the X-GitHub-Event header ("push", "issues", "pull_request", ...).
//   - Action: the "action" field, routed as {event}{Action} too, e.g. "issuesOpened".
//   - Signature: X-Hub-Signature-256, "sha256=" + hex HMAC-SHA256 of the raw body.
//   - Delivery: X-GitHub-Delivery.
//   - The "ping" event sent when a hook is created is an ordinary event.
//
// Known events are decoded into github.com/go-playground/webhooks payload structs and
// handed to handlers in Event.Data.
package adapters

import (
	"encoding/json"

	"github.com/go-playground/webhooks/v6/github"
	log "github.com/sirupsen/logrus"

	"github.com/opengovern/resilient-bridge/v2/webhook"
)

const (
	GitHubEventHeader     = "X-GitHub-Event"
	GitHubSignatureHeader = "X-Hub-Signature-256"
	GitHubDeliveryHeader  = "X-GitHub-Delivery"
	GitHubSignaturePrefix = "sha256="
)

var githubVariants = webhook.Variants{
	string(github.PingEvent):         func() any { return &github.PingPayload{} },
	string(github.PushEvent):         func() any { return &github.PushPayload{} },
	string(github.IssuesEvent):       func() any { return &github.IssuesPayload{} },
	string(github.IssueCommentEvent): func() any { return &github.IssueCommentPayload{} },
	string(github.PullRequestEvent):  func() any { return &github.PullRequestPayload{} },
	string(github.ReleaseEvent):      func() any { return &github.ReleasePayload{} },
	string(github.CreateEvent):       func() any { return &github.CreatePayload{} },
	string(github.DeleteEvent):       func() any { return &github.DeletePayload{} },
}

type GitHubWebhook struct {
	secret string
}

var (
	_ webhook.Provider           = (*GitHubWebhook)(nil)
	_ webhook.DeliveryIdentifier = (*GitHubWebhook)(nil)
)

// NewGitHubWebhook verifies deliveries with secret; an empty secret trusts every request.
func NewGitHubWebhook(secret string) *GitHubWebhook {
	return &GitHubWebhook{secret: secret}
}

func (g *GitHubWebhook) Name() string { return ProviderGitHub }

func (g *GitHubWebhook) Match(r *webhook.Request) bool {
	return r.Header.Get(GitHubEventHeader) != ""
}

func (g *GitHubWebhook) Identify(r *webhook.Request, _ webhook.Payload) string {
	return r.Header.Get(GitHubEventHeader)
}

func (g *GitHubWebhook) Verifier() webhook.Verifier {
	return webhook.HMACHexScheme{Header: GitHubSignatureHeader, Prefix: GitHubSignaturePrefix, Secret: g.secret}
}

func (g *GitHubWebhook) Handshake(*webhook.Request, webhook.Payload) (*webhook.Handshake, bool) {
	return nil, false
}

func (g *GitHubWebhook) Events(r *webhook.Request, p webhook.Payload) ([]webhook.Event, error) {
	if p.Object() == nil {
		return nil, webhook.ErrInvalidPayload
	}
	ev := webhook.Event{
		Type:   r.Header.Get(GitHubEventHeader),
		Action: webhook.StringField(p.Value, "action"),
		Raw:    json.RawMessage(p.Raw),
	}
	ev.Data = decodeVariant(githubVariants, ProviderGitHub, ev.Type, ev.Raw)
	return []webhook.Event{ev}, nil
}

func (g *GitHubWebhook) SplitsActions() bool { return true }

func (g *GitHubWebhook) DeliveryID(r *webhook.Request, _ webhook.Payload) string {
	return r.Header.Get(GitHubDeliveryHeader)
}

// decodeVariant returns the typed payload, or nil when the event has no variant or the
// payload does not fit it. Handlers can always fall back to Event.Decode.
func decodeVariant(variants webhook.Variants, provider, eventType string, raw json.RawMessage) any {
	data, err := variants.Decode(eventType, raw)
	if err != nil {
		log.WithFields(log.Fields{"provider": provider, "event": eventType}).WithError(err).Debug("Payload does not match its typed variant")
		return nil
	}
	return data
}
