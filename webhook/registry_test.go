package webhook_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/resilient-bridge/v2/webhook"
)

type countingHandler struct {
	calls int
}

func (h *countingHandler) Handle(context.Context, webhook.Event) error {
	h.calls++
	return nil
}

func TestRegistry_RegisterTwiceRemoveOnce(t *testing.T) {
	t.Parallel()

	r := webhook.NewRegistry()
	h := &countingHandler{}
	first := r.On("push", h)
	second := r.On("push", h)
	require.Equal(t, 2, r.Len("push"))
	assert.Equal(t, "push", first.Name())

	assert.True(t, r.Off(first))
	assert.Equal(t, 1, r.Len("push"))
	assert.False(t, r.Off(first), "removing twice is a no-op")
	assert.Equal(t, 1, r.Len("push"))

	assert.True(t, r.Off(second))
	assert.Zero(t, r.Len("push"))
	assert.Empty(t, r.Names())
}

func TestRegistry_OffHandler(t *testing.T) {
	t.Parallel()

	r := webhook.NewRegistry()
	a, b := &countingHandler{}, &countingHandler{}
	r.On("issues", a)
	r.On("issues", b)
	r.On("issues", a)

	assert.True(t, r.OffHandler("issues", a))
	handlers := r.Handlers("issues")
	require.Len(t, handlers, 2)
	assert.Same(t, a, handlers[0], "the most recent registration is removed")
	assert.Same(t, b, handlers[1])

	assert.False(t, r.OffHandler("issues", &countingHandler{}), "unregistered handler")
	assert.False(t, r.OffHandler("pull_request", a), "unregistered name")

	fn := webhook.HandlerFunc(func(context.Context, webhook.Event) error { return nil })
	r.On("issues", fn)
	assert.False(t, r.OffHandler("issues", fn), "functions are not comparable")
	assert.Equal(t, 3, r.Len("issues"))
}

// wrappedHandler is a value handler whose comparability depends on what it wraps.
type wrappedHandler struct {
	inner webhook.Handler
}

func (w wrappedHandler) Handle(ctx context.Context, event webhook.Event) error {
	return w.inner.Handle(ctx, event)
}

func TestRegistry_OffHandlerWrappedFunc(t *testing.T) {
	t.Parallel()

	r := webhook.NewRegistry()
	fn := webhook.HandlerFunc(func(context.Context, webhook.Event) error { return nil })
	withFunc := wrappedHandler{inner: fn}
	withPointer := wrappedHandler{inner: &countingHandler{}}
	r.On("push", withPointer)
	r.On("push", withFunc)

	assert.NotPanics(t, func() {
		assert.False(t, r.OffHandler("push", withFunc))
	})
	assert.NotPanics(t, func() {
		assert.True(t, r.OffHandler("push", withPointer), "scanning past the func wrapper is safe")
	})
	assert.Equal(t, 1, r.Len("push"))
}

func TestRegistry_SnapshotsAndClear(t *testing.T) {
	t.Parallel()

	r := webhook.NewRegistry()
	reg := r.OnFunc("a", func(context.Context, webhook.Event) error { return nil })
	r.OnFunc("a", func(context.Context, webhook.Event) error { return nil })
	r.OnFunc("b", func(context.Context, webhook.Event) error { return nil })
	r.OnFunc("c", func(context.Context, webhook.Event) error { return nil })

	snapshot := r.Handlers("a")
	r.Off(reg)
	assert.Len(t, snapshot, 2, "snapshots are not affected by later removals")
	assert.Len(t, r.Handlers("a"), 1)
	assert.Empty(t, r.Handlers("missing"))

	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	r.Clear("a", "b")
	assert.Equal(t, []string{"c"}, r.Names())
	r.Clear()
	assert.Empty(t, r.Names())
}
