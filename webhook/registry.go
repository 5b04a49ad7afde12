// webhook/registry.go
// -------------------
// Registry maps event names to ordered handler lists. Dispatch reads a snapshot, so a
// handler registered mid-dispatch may miss that delivery.

package webhook

import (
	"context"
	"reflect"
	"slices"
	"sync"
)

// Handler processes one event. Returning an error marks the event as failed.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Registration identifies one On call and is used to undo it.
type Registration struct {
	name string
	id   uint64
}

// Name is the event name the registration was made for.
func (r Registration) Name() string {
	return r.name
}

type registration struct {
	id      uint64
	handler Handler
}

// Registry maps event names to handlers in registration order. Dispatch reads a
// snapshot, so handlers added while a dispatch is running may not see that dispatch.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	nextID   uint64
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]registration)}
}

// On appends h to the handlers of name. The same handler may be registered more than
// once and then runs once per registration.
func (r *Registry) On(name string, h Handler) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.handlers[name] = append(r.handlers[name], registration{id: r.nextID, handler: h})
	return Registration{name: name, id: r.nextID}
}

// OnFunc is On for a plain function.
func (r *Registry) OnFunc(name string, fn func(ctx context.Context, event Event) error) Registration {
	return r.On(name, HandlerFunc(fn))
}

// Off removes the registration. It reports whether anything was removed.
func (r *Registry) Off(reg Registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.handlers[reg.name]
	i := slices.IndexFunc(list, func(e registration) bool { return e.id == reg.id })
	if i < 0 {
		return false
	}
	r.remove(reg.name, i)
	return true
}

// OffHandler removes the most recent registration of h under name. Only comparable
// handlers (pointers, comparable structs) can be removed this way; functions never match,
// nor do structs whose interface fields hold functions.
func (r *Registry) OffHandler(name string, h Handler) bool {
	if h == nil || !reflect.ValueOf(h).Comparable() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.handlers[name]
	for i := len(list) - 1; i >= 0; i-- {
		if !reflect.ValueOf(list[i].handler).Comparable() {
			continue
		}
		if list[i].handler == h {
			r.remove(name, i)
			return true
		}
	}
	return false
}

// remove deletes index i of name. Callers hold r.mu. The slice is copied so snapshots
// handed out earlier stay intact.
func (r *Registry) remove(name string, i int) {
	list := slices.Delete(slices.Clone(r.handlers[name]), i, i+1)
	if len(list) == 0 {
		delete(r.handlers, name)
		return
	}
	r.handlers[name] = list
}

// Clear removes every handler for the given names, or all handlers when none are given.
func (r *Registry) Clear(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(names) == 0 {
		r.handlers = make(map[string][]registration)
		return
	}
	for _, name := range names {
		delete(r.handlers, name)
	}
}

// Handlers returns a snapshot of the handlers for name in registration order.
func (r *Registry) Handlers(name string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.handlers[name]
	out := make([]Handler, len(list))
	for i, e := range list {
		out[i] = e.handler
	}
	return out
}

// Len returns the number of registrations for name.
func (r *Registry) Len(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[name])
}

// Names returns the event names with at least one handler, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
