// Package webhook authenticates inbound provider webhooks, normalizes their payloads
// into events and dispatches the events to registered handlers.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrTimestampExpired = errors.New("timestamp outside tolerance")
	ErrUnresolvedEvent  = errors.New("unable to resolve event type")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrHandlerFailed    = errors.New("handler failed")
	ErrNoProvider       = errors.New("no provider matched the request")
)

// IsSignatureError reports whether err is an authentication failure.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrInvalidTimestamp) ||
		errors.Is(err, ErrTimestampExpired)
}

// Request is an inbound webhook call: its headers and the raw, unmodified body.
type Request struct {
	Header http.Header
	Body   []byte
}

// NewRequest builds a Request from a header map. A nil header is allowed.
func NewRequest(header http.Header, body []byte) *Request {
	if header == nil {
		header = http.Header{}
	}
	return &Request{Header: header, Body: body}
}

// Payload is the request body parsed once. Value is nil when the body is not JSON.
type Payload struct {
	Raw   json.RawMessage
	Value any
}

// ParsePayload decodes body. It never fails: a non-JSON body yields a Payload with
// a nil Value.
func ParsePayload(body []byte) Payload {
	p := Payload{Raw: json.RawMessage(body)}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return p
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil && !dec.More() {
		p.Value = v
	}
	return p
}

// Object returns the payload as a JSON object, or nil.
func (p Payload) Object() map[string]any {
	m, _ := p.Value.(map[string]any)
	return m
}

// Array returns the payload as a JSON array, or nil.
func (p Payload) Array() []any {
	a, _ := p.Value.([]any)
	return a
}

// StringField follows path through nested objects and returns the string found there.
func StringField(v any, path ...string) string {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return ""
		}
		v = m[key]
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return ""
}

// Event is one logical webhook event. Type is always set before handlers run.
type Event struct {
	Provider string
	Type     string
	Action   string
	// DeliveryID identifies the inbound call the event arrived in.
	DeliveryID string
	Raw        json.RawMessage
	// Data is the provider's typed variant for Type, or nil when none is defined.
	Data any
}

// Names returns the handler names the event is routed to: the generic type first,
// then {type}{CapitalizedAction} when split is set and an action is present.
func (e Event) Names(split bool) []string {
	names := []string{e.Type}
	if split && e.Action != "" {
		names = append(names, e.Type+Capitalize(e.Action))
	}
	return names
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Decode unmarshals the event's raw JSON into v.
func (e Event) Decode(v any) error {
	if len(e.Raw) == 0 {
		return ErrInvalidPayload
	}
	return json.Unmarshal(e.Raw, v)
}

// Handshake is a provider endpoint-validation probe answered without running handlers.
type Handshake struct {
	// Challenge is the echoed value reported in the Result.
	Challenge string
	// Response, when set, is written as the HTTP body instead of the Result.
	Response any
}

// EventResult reports the outcome for one logical event.
type EventResult struct {
	EventType string `json:"eventType"`
	Action    string `json:"action,omitempty"`
	Success   bool   `json:"success"`
	Handlers  int    `json:"handlers"`
	Error     string `json:"error,omitempty"`
}

// Result is the uniform outcome of a dispatch.
type Result struct {
	Success    bool          `json:"success"`
	Provider   string        `json:"provider,omitempty"`
	EventType  string        `json:"eventType,omitempty"`
	Action     string        `json:"action,omitempty"`
	Challenge  string        `json:"challenge,omitempty"`
	DeliveryID string        `json:"deliveryId,omitempty"`
	Error      string        `json:"error,omitempty"`
	Events     []EventResult `json:"events,omitempty"`

	// Err is the underlying error for errors.Is checks.
	Err error `json:"-"`
	// Response overrides the HTTP body for handshakes.
	Response any `json:"-"`
}

func failure(provider string, err error) Result {
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = "webhook dispatch failed"
	}
	return Result{Provider: provider, Error: msg, Err: err}
}

// StatusCode maps the result onto an HTTP status.
func (r Result) StatusCode() int {
	switch {
	case r.Success:
		return http.StatusOK
	case IsSignatureError(r.Err):
		return http.StatusUnauthorized
	case errors.Is(r.Err, ErrNoProvider):
		return http.StatusNotFound
	case errors.Is(r.Err, ErrUnresolvedEvent), errors.Is(r.Err, ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
