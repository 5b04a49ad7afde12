// webhook/provider.go
// -------------------
// Provider is the per-platform policy the dispatcher consults: how to match a shared
// endpoint, resolve the event name, verify the signature, answer handshakes and split
// a payload into events.

package webhook

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Provider is the per-platform policy the Dispatcher is parameterized with.
//
// Match, Identify and Handshake must not panic and must not mutate the request; they
// may be called for every inbound request on a shared endpoint.
type Provider interface {
	Name() string
	// Match reports whether the request was sent by this provider.
	Match(r *Request) bool
	// Identify resolves the event-type discriminator, or "" when it cannot.
	Identify(r *Request, p Payload) string
	// Verifier returns the signature scheme, or nil when the provider signs nothing.
	Verifier() Verifier
	// Handshake recognizes endpoint-validation probes.
	Handshake(r *Request, p Payload) (*Handshake, bool)
	// Events normalizes the payload into one or more events, in payload order.
	Events(r *Request, p Payload) ([]Event, error)
	// SplitsActions reports whether events are also routed as {type}{Action}.
	SplitsActions() bool
}

// DeliveryIdentifier is implemented by providers that send a delivery id, in a header
// or in the already parsed payload.
type DeliveryIdentifier interface {
	DeliveryID(r *Request, p Payload) string
}

// Variants maps event types to constructors of their typed payload.
type Variants map[string]func() any

// Decode unmarshals raw into the variant registered for eventType. It returns nil
// without error when no variant is registered.
func (v Variants) Decode(eventType string, raw json.RawMessage) (any, error) {
	ctor, ok := v[eventType]
	if !ok {
		return nil, nil
	}
	ptr := ctor()
	if err := json.Unmarshal(raw, ptr); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidPayload, eventType, err)
	}
	// Handlers type-switch on values, not pointers.
	if rv := reflect.ValueOf(ptr); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface(), nil
	}
	return ptr, nil
}

// RawObjects returns the payload as a list of raw JSON objects: an array yields one
// entry per element, anything else yields the whole body.
func RawObjects(p Payload) ([]json.RawMessage, error) {
	if p.Value == nil {
		return nil, fmt.Errorf("%w: body is not JSON", ErrInvalidPayload)
	}
	if _, ok := p.Value.([]any); !ok {
		return []json.RawMessage{p.Raw}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(p.Raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty event array", ErrInvalidPayload)
	}
	return items, nil
}
