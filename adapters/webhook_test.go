package adapters_test

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/webhooks/v6/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/resilient-bridge/v2/adapters"
	"github.com/opengovern/resilient-bridge/v2/webhook"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func clock() time.Time { return fixedNow }

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// seen records the handler names and events that ran, in order.
type seen struct {
	mu     sync.Mutex
	names  []string
	events []webhook.Event
}

func (s *seen) on(d *webhook.Dispatcher, names ...string) {
	for _, name := range names {
		d.OnFunc(name, func(_ context.Context, ev webhook.Event) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.names = append(s.names, name)
			s.events = append(s.events, ev)
			return nil
		})
	}
}

func TestGitHubWebhook(t *testing.T) {
	t.Parallel()

	const secret = "It's a Secret to Everybody"
	d := webhook.NewDispatcher(adapters.NewGitHubWebhook(secret), webhook.WithClock(clock))
	rec := &seen{}
	rec.on(d, "push", "issues", "issuesOpened", "issuesClosed")

	push := []byte(`{"ref":"refs/heads/main","before":"abc","after":"def","repository":{"full_name":"octo/hello"}}`)
	res := d.Dispatch(context.Background(), webhook.NewRequest(headers(
		adapters.GitHubEventHeader, "push",
		adapters.GitHubDeliveryHeader, "72d3162e-cc78-11e3-81ab-4c9367dc0958",
		adapters.GitHubSignatureHeader, webhook.SignHMACHex(push, secret, adapters.GitHubSignaturePrefix),
	), push))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "72d3162e-cc78-11e3-81ab-4c9367dc0958", res.DeliveryID)
	require.Len(t, rec.events, 1)
	payload, ok := rec.events[0].Data.(github.PushPayload)
	require.True(t, ok, "push events carry a github.PushPayload, got %T", rec.events[0].Data)
	assert.Equal(t, "refs/heads/main", payload.Ref)
	assert.Equal(t, "octo/hello", payload.Repository.FullName)

	issue := []byte(`{"action":"opened","issue":{"number":7,"title":"broken"}}`)
	res = d.Dispatch(context.Background(), webhook.NewRequest(headers(
		adapters.GitHubEventHeader, "issues",
		adapters.GitHubSignatureHeader, webhook.SignHMACHex(issue, secret, adapters.GitHubSignaturePrefix),
	), issue))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "opened", res.Action)
	assert.NotEmpty(t, res.DeliveryID, "a delivery id is generated when the header is missing")
	assert.Equal(t, []string{"push", "issues", "issuesOpened"}, rec.names)

	res = d.Dispatch(context.Background(), webhook.NewRequest(headers(
		adapters.GitHubEventHeader, "issues",
		adapters.GitHubSignatureHeader, webhook.SignHMACHex(issue, "wrong", adapters.GitHubSignaturePrefix),
	), issue))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, webhook.ErrInvalidSignature)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode())
}

func TestGitHubWebhook_UnknownEventHasNoData(t *testing.T) {
	t.Parallel()

	d := webhook.NewDispatcher(adapters.NewGitHubWebhook(""))
	rec := &seen{}
	rec.on(d, "workflow_job", "workflow_jobQueued")

	body := []byte(`{"action":"queued","workflow_job":{"id":1}}`)
	res := d.Dispatch(context.Background(), webhook.NewRequest(headers(adapters.GitHubEventHeader, "workflow_job"), body))
	require.True(t, res.Success, res.Error)
	require.Len(t, rec.events, 2)
	assert.Nil(t, rec.events[0].Data)

	var job struct {
		WorkflowJob struct {
			ID int `json:"id"`
		} `json:"workflow_job"`
	}
	require.NoError(t, rec.events[0].Decode(&job))
	assert.Equal(t, 1, job.WorkflowJob.ID)
}

func slackRequest(body []byte, secret string, at time.Time) *webhook.Request {
	ts := strconv.FormatInt(at.Unix(), 10)
	return webhook.NewRequest(headers(
		adapters.SlackTimestampHeader, ts,
		adapters.SlackSignatureHeader, webhook.SignTimestampedHMAC(body, secret, ts),
	), body)
}

func TestSlackWebhook(t *testing.T) {
	t.Parallel()

	const secret = "8f742231b10e8888abcd99yyyzzz85a5"
	d := webhook.NewDispatcher(adapters.NewSlackWebhook(secret), webhook.WithClock(clock))
	rec := &seen{}
	rec.on(d, "app_mention", "message", adapters.SlackSlashCommand, "block_actions")

	t.Run("url verification", func(t *testing.T) {
		body := []byte(`{"token":"Jhj5dZrVaK7ZwHHjRyZWjbDl","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`)
		res := d.Dispatch(context.Background(), slackRequest(body, secret, fixedNow))
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", res.Challenge)
		assert.Equal(t, adapters.SlackURLVerification, res.EventType)
		assert.Empty(t, res.Events)
	})

	t.Run("event callback", func(t *testing.T) {
		body := []byte(`{"type":"event_callback","event_id":"Ev08MFMKH6","event":{"type":"message","subtype":"bot_message","text":"hi"}}`)
		res := d.Dispatch(context.Background(), slackRequest(body, secret, fixedNow.Add(-time.Minute)))
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "message", res.EventType)
		assert.Equal(t, "bot_message", res.Action)
		assert.Equal(t, "Ev08MFMKH6", res.DeliveryID)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		body := []byte(`{"type":"event_callback","event":{"type":"app_mention"}}`)
		res := d.Dispatch(context.Background(), slackRequest(body, secret, fixedNow.Add(-10*time.Minute)))
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, webhook.ErrTimestampExpired)
	})

	t.Run("slash command", func(t *testing.T) {
		form := url.Values{"command": {"/deploy"}, "text": {"prod"}, "user_id": {"U2147483697"}}
		res := d.Dispatch(context.Background(), slackRequest([]byte(form.Encode()), secret, fixedNow))
		require.True(t, res.Success, res.Error)
		assert.Equal(t, adapters.SlackSlashCommand, res.EventType)
		assert.Equal(t, "/deploy", res.Action)
	})

	t.Run("interactivity", func(t *testing.T) {
		form := url.Values{"payload": {`{"type":"block_actions","callback_id":"approve","user":{"id":"U1"}}`}}
		res := d.Dispatch(context.Background(), slackRequest([]byte(form.Encode()), secret, fixedNow))
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "block_actions", res.EventType)
		assert.Equal(t, "approve", res.Action)
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"message", adapters.SlackSlashCommand, "block_actions"}, rec.names)
	var cmd map[string]string
	require.NoError(t, rec.events[1].Decode(&cmd))
	assert.Equal(t, "prod", cmd["text"])
}

func discordKey(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, hex.EncodeToString(priv.Public().(ed25519.PublicKey))
}

func discordHeaders(priv ed25519.PrivateKey, body []byte, ts string) http.Header {
	msg := append([]byte(ts), body...)
	return headers(
		adapters.DiscordSignatureHeader, hex.EncodeToString(ed25519.Sign(priv, msg)),
		adapters.DiscordTimestampHeader, ts,
	)
}

func TestDiscordWebhook_Ping(t *testing.T) {
	t.Parallel()

	priv, pub := discordKey(t)
	d := webhook.NewDispatcher(adapters.NewDiscordWebhook(pub))
	rec := &seen{}
	rec.on(d, adapters.DiscordPing)

	body := `{"id":"1","application_id":"2","type":1}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	for k, v := range discordHeaders(priv, []byte(body), "1700000000") {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	d.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"type":1}`, rr.Body.String())
	assert.Empty(t, rec.names, "PING never reaches handlers")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	for k, v := range discordHeaders(priv, []byte(`{"type":1}`), "1700000000") {
		req.Header[k] = v
	}
	rr = httptest.NewRecorder()
	d.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDiscordWebhook_Interactions(t *testing.T) {
	t.Parallel()

	priv, pub := discordKey(t)
	d := webhook.NewDispatcher(adapters.NewDiscordWebhook(pub))
	rec := &seen{}
	rec.on(d, "APPLICATION_COMMAND", "MESSAGE_COMPONENT", "APPLICATION_AUTHORIZED")

	tests := []struct {
		name       string
		body       string
		eventType  string
		action     string
		deliveryID string
	}{
		{"slash command", `{"id":"i2","type":2,"data":{"name":"deploy"}}`, "APPLICATION_COMMAND", "deploy", "i2"},
		{"button", `{"id":"i3","type":3,"data":{"custom_id":"approve_btn","component_type":2}}`, "MESSAGE_COMPONENT", "approve_btn", "i3"},
		{"webhook event", `{"version":1,"application_id":"2","type":1,"event":{"type":"APPLICATION_AUTHORIZED","data":{"user":{"id":"u1"}}}}`, "APPLICATION_AUTHORIZED", "", ""},
	}
	for _, tt := range tests {
		res := d.Dispatch(context.Background(), webhook.NewRequest(discordHeaders(priv, []byte(tt.body), "1700000000"), []byte(tt.body)))
		require.True(t, res.Success, "%s: %s", tt.name, res.Error)
		assert.Equal(t, tt.eventType, res.EventType, tt.name)
		assert.Equal(t, tt.action, res.Action, tt.name)
		if tt.deliveryID != "" {
			assert.Equal(t, tt.deliveryID, res.DeliveryID, tt.name)
		}
	}

	require.Len(t, rec.events, 3)
	var data struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, rec.events[2].Decode(&data))
	assert.Equal(t, "u1", data.User.ID)
}

func TestDiscordWebhook_EventPing(t *testing.T) {
	t.Parallel()

	d := webhook.NewDispatcher(adapters.NewDiscordWebhook(""))
	body := []byte(`{"version":1,"application_id":"2","type":0}`)
	res := d.Dispatch(context.Background(), webhook.NewRequest(headers(adapters.DiscordSignatureHeader, "00"), body))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, adapters.DiscordPing, res.Challenge)
	assert.Nil(t, res.Response)
}

func TestHubSpotWebhook(t *testing.T) {
	t.Parallel()

	const secret = "yyyyyyyy-yyyy-yyyy-yyyy-yyyyyyyyyyyy"
	d := webhook.NewDispatcher(adapters.NewHubSpotWebhook(secret))
	rec := &seen{}
	rec.on(d, "contact.creation", "contact.propertyChange", "deal.deletion")

	body := []byte(`[
		{"eventId":1,"subscriptionId":11,"portalId":62515,"occurredAt":1700000000000,"subscriptionType":"contact.creation","objectId":123},
		{"eventId":2,"subscriptionId":12,"portalId":62515,"occurredAt":1700000000001,"subscriptionType":"contact.propertyChange","propertyName":"email","objectId":123},
		{"eventId":3,"subscriptionId":13,"portalId":62515,"occurredAt":1700000000002,"subscriptionType":"deal.deletion","objectId":9}
	]`)
	sig := hex.EncodeToString(adapters.SignHubSpotV1(body, secret))

	res := d.Dispatch(context.Background(), webhook.NewRequest(headers(
		adapters.HubSpotSignatureHeader, sig,
		adapters.HubSpotVersionHeader, "v1",
	), body))
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Events, 3)
	assert.Equal(t, "email", res.Events[1].Action)
	assert.Equal(t, []string{"contact.creation", "contact.propertyChange", "deal.deletion"}, rec.names)

	var first struct {
		ObjectID int `json:"objectId"`
	}
	require.NoError(t, rec.events[0].Decode(&first))
	assert.Equal(t, 123, first.ObjectID)

	tests := []struct {
		name    string
		headers http.Header
		want    error
	}{
		{"missing", headers(), webhook.ErrMissingSignature},
		{"wrong secret", headers(adapters.HubSpotSignatureHeader, hex.EncodeToString(adapters.SignHubSpotV1(body, "other"))), webhook.ErrInvalidSignature},
		{"not hex", headers(adapters.HubSpotSignatureHeader, "zz"), webhook.ErrInvalidSignature},
		{"v3", headers(adapters.HubSpotSignatureHeader, sig, adapters.HubSpotVersionHeader, "v3"), webhook.ErrInvalidSignature},
	}
	for _, tt := range tests {
		res := d.Dispatch(context.Background(), webhook.NewRequest(tt.headers, body))
		assert.False(t, res.Success, tt.name)
		assert.ErrorIs(t, res.Err, tt.want, tt.name)
	}
	assert.Len(t, rec.names, 3, "rejected batches run no handlers")
}

func linearBody(at time.Time) []byte {
	return []byte(fmt.Sprintf(`{"action":"create","type":"Issue","data":{"id":"ENG-1","title":"broken"},"webhookTimestamp":%d}`, at.UnixMilli()))
}

func TestLinearWebhook(t *testing.T) {
	t.Parallel()

	const secret = "lin_wh_secret"
	d := webhook.NewDispatcher(adapters.NewLinearWebhook(secret), webhook.WithClock(clock))
	rec := &seen{}
	rec.on(d, "Issue", "IssueCreate", "IssueRemove")

	body := linearBody(fixedNow.Add(-10 * time.Second))
	res := d.Dispatch(context.Background(), webhook.NewRequest(headers(
		adapters.LinearSignatureHeader, webhook.SignHMACHex(body, secret, ""),
		adapters.LinearEventHeader, "Issue",
		adapters.LinearDeliveryHeader, "234d1a4e-b617-4388-90fe-adc3633d6b72",
	), body))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "234d1a4e-b617-4388-90fe-adc3633d6b72", res.DeliveryID)
	assert.Equal(t, []string{"Issue", "IssueCreate"}, rec.names)

	stale := linearBody(fixedNow.Add(-2 * time.Minute))
	res = d.Dispatch(context.Background(), webhook.NewRequest(headers(
		adapters.LinearSignatureHeader, webhook.SignHMACHex(stale, secret, ""),
	), stale))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, webhook.ErrTimestampExpired)

	res = d.Dispatch(context.Background(), webhook.NewRequest(headers(
		adapters.LinearSignatureHeader, webhook.SignHMACHex(body, "wrong", ""),
	), body))
	assert.ErrorIs(t, res.Err, webhook.ErrInvalidSignature)
	assert.Len(t, rec.names, 2)
}

func TestWebhookProviders_Router(t *testing.T) {
	t.Parallel()

	var dispatchers []*webhook.Dispatcher
	for _, p := range adapters.WebhookProviders(adapters.WebhookSecrets{}) {
		dispatchers = append(dispatchers, webhook.NewDispatcher(p))
	}
	rt := webhook.NewRouter(dispatchers...)

	tests := []struct {
		name     string
		header   http.Header
		body     string
		provider string
		status   int
	}{
		{"github", headers(adapters.GitHubEventHeader, "ping"), `{"zen":"Keep it logically awesome.","hook_id":1}`, adapters.ProviderGitHub, http.StatusOK},
		{"slack", headers(adapters.SlackTimestampHeader, "1700000000"), `{"type":"url_verification","challenge":"c"}`, adapters.ProviderSlack, http.StatusOK},
		{"discord", headers(adapters.DiscordSignatureHeader, "00"), `{"id":"1","type":1}`, adapters.ProviderDiscord, http.StatusOK},
		{"linear", headers(adapters.LinearEventHeader, "Comment"), `{"action":"update","type":"Comment","data":{}}`, adapters.ProviderLinear, http.StatusOK},
		{"hubspot unsigned", headers(), `[{"portalId":1,"subscriptionType":"company.creation","objectId":5}]`, adapters.ProviderHubSpot, http.StatusOK},
		{"unknown", headers("X-Gitlab-Event", "Push Hook"), `{"object_kind":"push"}`, "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := rt.Dispatch(context.Background(), webhook.NewRequest(tt.header, []byte(tt.body)))
			assert.Equal(t, tt.status, res.StatusCode(), res.Error)
			assert.Equal(t, tt.provider, res.Provider)
		})
	}
}

func TestWebhookProviders_ServeJSON(t *testing.T) {
	t.Parallel()

	d := webhook.NewDispatcher(adapters.NewSlackWebhook(""))
	srv := httptest.NewServer(d)
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(`{"type":"url_verification","challenge":"xyz"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var res webhook.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "xyz", res.Challenge)
}
