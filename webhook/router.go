// webhook/router.go
// -----------------
// Router serves several providers, either on one shared endpoint (first provider
// whose Match accepts the request) or on /{provider} routes.

package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// Router sends requests arriving on a shared endpoint to the first dispatcher whose
// provider matches, in registration order.
type Router struct {
	mu          sync.RWMutex
	dispatchers []*Dispatcher
	byName      map[string]*Dispatcher
	logger      *log.Entry
}

func NewRouter(dispatchers ...*Dispatcher) *Router {
	r := &Router{
		byName: make(map[string]*Dispatcher),
		logger: log.WithField("component", "webhook-router"),
	}
	for _, d := range dispatchers {
		r.Add(d)
	}
	return r
}

// Add appends d. A dispatcher for an already known provider name replaces it.
func (rt *Router) Add(d *Dispatcher) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	name := d.Provider().Name()
	if old, ok := rt.byName[name]; ok {
		for i, existing := range rt.dispatchers {
			if existing == old {
				rt.dispatchers[i] = d
			}
		}
	} else {
		rt.dispatchers = append(rt.dispatchers, d)
	}
	rt.byName[name] = d
}

// Dispatcher returns the dispatcher registered for the provider name.
func (rt *Router) Dispatcher(name string) (*Dispatcher, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	d, ok := rt.byName[name]
	return d, ok
}

// Match returns the first dispatcher whose provider claims the request.
func (rt *Router) Match(r *Request) (*Dispatcher, bool) {
	rt.mu.RLock()
	candidates := append([]*Dispatcher(nil), rt.dispatchers...)
	rt.mu.RUnlock()

	for _, d := range candidates {
		if safeMatch(d.Provider(), r) {
			return d, true
		}
	}
	return nil, false
}

func safeMatch(p Provider, r *Request) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return p.Match(r)
}

// Dispatch routes r to the matching dispatcher.
func (rt *Router) Dispatch(ctx context.Context, r *Request) Result {
	d, ok := rt.Match(r)
	if !ok {
		rt.logger.Debug("No webhook provider matched the request")
		return failure("", ErrNoProvider)
	}
	return d.Dispatch(ctx, r)
}

// ServeHTTP implements the shared endpoint.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		writeResult(w, failure("", fmt.Errorf("%w: reading body: %v", ErrInvalidPayload, err)))
		return
	}
	writeResult(w, rt.Dispatch(r.Context(), NewRequest(r.Header, body)))
}

// RegisterRoutes mounts POST / (shared, matcher based) and POST /{provider}.
func (rt *Router) RegisterRoutes(r chi.Router) {
	r.Post("/", rt.ServeHTTP)
	r.Post("/{provider}", func(w http.ResponseWriter, req *http.Request) {
		d, ok := rt.Dispatcher(chi.URLParam(req, "provider"))
		if !ok {
			writeResult(w, failure("", ErrNoProvider))
			return
		}
		d.ServeHTTP(w, req)
	})
}

// Routes returns a chi router with RegisterRoutes applied.
func (rt *Router) Routes() chi.Router {
	r := chi.NewRouter()
	rt.RegisterRoutes(r)
	return r
}
