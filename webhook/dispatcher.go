// webhook/dispatcher.go
// ---------------------
// Dispatcher drives one inbound delivery through identify, authenticate, handshake,
// parse, route, invoke and report. It never panics past its boundary: every failure
// ends in a Result, and ServeHTTP turns that Result into a status code.

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MaxBodyBytes bounds the body read by ServeHTTP.
const MaxBodyBytes = 5 << 20

// Dispatcher verifies, parses and routes the webhooks of one provider.
//
// A dispatch goes received → identified → authenticated → parsed → routed → invoked →
// reported. Unresolved event types, signature failures and handler failures jump
// straight to reported. Dispatch never panics and never returns an error; the outcome
// is always a Result.
type Dispatcher struct {
	provider        Provider
	registry        *Registry
	continueOnError bool
	logger          *log.Entry
	metrics         *Metrics
	now             func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithContinueOnError keeps running the remaining handlers of an event after one
// fails. The event is still reported as failed.
func WithContinueOnError(enabled bool) DispatcherOption {
	return func(d *Dispatcher) { d.continueOnError = enabled }
}

// WithLogger sets the log entry used by the dispatcher.
func WithLogger(entry *log.Entry) DispatcherOption {
	return func(d *Dispatcher) {
		if entry != nil {
			d.logger = entry
		}
	}
}

// WithMetrics records deliveries on m.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock overrides the clock used for timestamp checks.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithRegistry shares a registry between dispatchers.
func WithRegistry(r *Registry) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.registry = r
		}
	}
}

func NewDispatcher(provider Provider, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		registry: NewRegistry(),
		logger:   log.NewEntry(log.StandardLogger()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithField("provider", provider.Name())

	if v := provider.Verifier(); v == nil || !v.Configured() {
		d.logger.Warn("Webhook signature verification is disabled: no secret configured, every request is trusted")
	}
	return d
}

// Provider returns the provider the dispatcher serves.
func (d *Dispatcher) Provider() Provider {
	return d.provider
}

// Registry returns the handler registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// On registers h for name.
func (d *Dispatcher) On(name string, h Handler) Registration {
	return d.registry.On(name, h)
}

// OnFunc registers fn for name.
func (d *Dispatcher) OnFunc(name string, fn func(ctx context.Context, event Event) error) Registration {
	return d.registry.OnFunc(name, fn)
}

// Off removes a registration.
func (d *Dispatcher) Off(reg Registration) bool {
	return d.registry.Off(reg)
}

// OffHandler removes the most recent registration of h for name.
func (d *Dispatcher) OffHandler(name string, h Handler) bool {
	return d.registry.OffHandler(name, h)
}

// Clear removes the handlers of the given names, or all handlers.
func (d *Dispatcher) Clear(names ...string) {
	d.registry.Clear(names...)
}

// DispatchValue dispatches an already structured payload. Strings and byte slices are
// used as the raw body; anything else is JSON encoded. Signature schemes see the
// re-encoded bytes, so this is meant for trusted, unsigned sources.
func (d *Dispatcher) DispatchValue(ctx context.Context, header http.Header, payload any) Result {
	var body []byte
	switch v := payload.(type) {
	case []byte:
		body = v
	case string:
		body = []byte(v)
	case json.RawMessage:
		body = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return failure(d.provider.Name(), fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		}
		body = data
	}
	return d.Dispatch(ctx, NewRequest(header, body))
}

// Dispatch handles one inbound request.
func (d *Dispatcher) Dispatch(ctx context.Context, r *Request) (res Result) {
	name := d.provider.Name()
	defer func() {
		if p := recover(); p != nil {
			res = failure(name, fmt.Errorf("webhook dispatch panicked: %v", p))
		}
		d.metrics.observe(name, res)
	}()
	if r == nil {
		return failure(name, fmt.Errorf("%w: empty request", ErrInvalidPayload))
	}
	if r.Header == nil {
		r = NewRequest(nil, r.Body)
	}
	payload := ParsePayload(r.Body)

	eventType := d.provider.Identify(r, payload)
	if eventType == "" {
		d.logger.Info("Rejecting webhook with unresolvable event type")
		return failure(name, fmt.Errorf("%w: no event type in headers or body", ErrUnresolvedEvent))
	}
	logger := d.logger.WithField("event", eventType)

	if v := d.provider.Verifier(); v != nil && v.Configured() {
		if err := v.Verify(r, d.now()); err != nil {
			logger.WithError(err).Warn("Webhook signature verification failed")
			res := failure(name, err)
			res.EventType = eventType
			return res
		}
	}

	if hs, ok := d.provider.Handshake(r, payload); ok {
		logger.Debug("Answered endpoint verification handshake")
		return Result{
			Success:   true,
			Provider:  name,
			EventType: eventType,
			Challenge: hs.Challenge,
			Response:  hs.Response,
		}
	}

	events, err := d.provider.Events(r, payload)
	if err == nil && len(events) == 0 {
		err = fmt.Errorf("%w: no events in payload", ErrInvalidPayload)
	}
	if err != nil {
		logger.WithError(err).Info("Rejecting webhook payload")
		res := failure(name, err)
		res.EventType = eventType
		return res
	}
	for _, ev := range events {
		if ev.Type == "" {
			return failure(name, fmt.Errorf("%w: event without type in batch", ErrUnresolvedEvent))
		}
	}

	deliveryID := ""
	if di, ok := d.provider.(DeliveryIdentifier); ok {
		deliveryID = di.DeliveryID(r, payload)
	}
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	res = Result{
		Success:    true,
		Provider:   name,
		EventType:  events[0].Type,
		Action:     events[0].Action,
		DeliveryID: deliveryID,
		Events:     make([]EventResult, 0, len(events)),
	}
	var errs []error
	for _, ev := range events {
		ev.Provider = name
		ev.DeliveryID = deliveryID
		er, err := d.invoke(ctx, ev)
		res.Events = append(res.Events, er)
		if err != nil {
			if res.Success {
				res.Success = false
				res.EventType = ev.Type
				res.Action = ev.Action
				res.Error = err.Error()
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		res.Err = errors.Join(errs...)
	}
	return res
}

// invoke runs the handlers for one event, generic names first, sequentially.
func (d *Dispatcher) invoke(ctx context.Context, ev Event) (EventResult, error) {
	er := EventResult{EventType: ev.Type, Action: ev.Action, Success: true}
	logger := d.logger.WithFields(log.Fields{"event": ev.Type, "action": ev.Action, "delivery": ev.DeliveryID})

	var firstErr error
	for _, name := range ev.Names(d.provider.SplitsActions()) {
		for _, h := range d.registry.Handlers(name) {
			er.Handlers++
			if err := callHandler(ctx, h, ev); err != nil {
				err = fmt.Errorf("%w: %s: %w", ErrHandlerFailed, name, err)
				logger.WithError(err).Error("Webhook handler failed")
				if firstErr == nil {
					firstErr = err
					er.Success = false
					er.Error = err.Error()
				}
				if !d.continueOnError {
					return er, firstErr
				}
			}
		}
	}
	if er.Handlers == 0 {
		logger.Debug("No handlers registered for event")
	}
	return er, firstErr
}

func callHandler(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h.Handle(ctx, ev)
}

// ServeHTTP reads the body, dispatches it and writes the Result as JSON.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		writeResult(w, failure(d.provider.Name(), fmt.Errorf("%w: reading body: %v", ErrInvalidPayload, err)))
		return
	}
	writeResult(w, d.Dispatch(r.Context(), NewRequest(r.Header, body)))
}

func writeResult(w http.ResponseWriter, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.StatusCode())
	var body any = res
	if res.Success && res.Response != nil {
		body = res.Response
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to write webhook response")
	}
}
