// operation.go
// ------------
// Operation is a handle on an in-flight asynchronous call that can be canceled from the
// outside before or while it runs. The executor receives a cancellation token (a context)
// and a Settler it uses to resolve or reject the operation and to register cleanup that
// must run when the operation is canceled (for example aborting a transport call).
//
// Exactly one terminal transition is observable: Resolved, Rejected or Canceled.
// After the first transition every further Resolve, Reject or Cancel is ignored.
package resilientbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCanceled is returned by Wait when the operation was canceled.
var ErrCanceled = fmt.Errorf("operation canceled: %w", context.Canceled)

// OperationState describes where an Operation is in its lifecycle.
type OperationState int

const (
	StatePending OperationState = iota
	StateRunning
	StateResolved
	StateRejected
	StateCanceled
)

func (s OperationState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s OperationState) Terminal() bool {
	return s == StateResolved || s == StateRejected || s == StateCanceled
}

// Settler is handed to an executor to settle its Operation.
type Settler[T any] interface {
	Resolve(value T)
	Reject(err error)
	// OnCancel registers fn to run when the operation is canceled. If the operation is
	// already canceled fn runs immediately; if it already settled otherwise fn never runs.
	OnCancel(fn func())
}

// Executor performs the work of an Operation. It must check ctx before issuing I/O and
// return without side effects if ctx is already done. The operation is rejected if the
// executor returns without settling it.
type Executor[T any] func(ctx context.Context, settle Settler[T])

// Operation is a cancelable, single-assignment result.
type Operation[T any] struct {
	mu       sync.Mutex
	state    OperationState
	value    T
	err      error
	onCancel []func()
	done     chan struct{}

	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool
}

// Go starts executor on its own goroutine and returns the Operation handle.
// Canceling parent cancels the operation.
func Go[T any](parent context.Context, executor Executor[T]) *Operation[T] {
	op := newOperation[T](parent)
	go op.run(executor)
	return op
}

func newOperation[T any](parent context.Context) *Operation[T] {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	op := &Operation[T]{
		state:  StatePending,
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	// A canceled parent is an external cancellation, not a rejection.
	op.stopParent = context.AfterFunc(parent, op.Cancel)
	return op
}

func (op *Operation[T]) run(executor Executor[T]) {
	op.mu.Lock()
	if op.state != StatePending {
		op.mu.Unlock()
		return
	}
	op.state = StateRunning
	op.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			op.Reject(fmt.Errorf("operation panicked: %v", r))
			return
		}
		if op.ctx.Err() != nil {
			// The token was canceled from the parent before its AfterFunc ran.
			op.Cancel()
			return
		}
		op.Reject(errors.New("operation finished without a result"))
	}()

	executor(op.ctx, op)
}

// Resolve settles the operation successfully. Ignored once the operation is terminal.
func (op *Operation[T]) Resolve(value T) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state.Terminal() {
		return
	}
	op.value = value
	op.state = StateResolved
	op.finishLocked()
}

// Reject settles the operation with err. Ignored once the operation is terminal.
func (op *Operation[T]) Reject(err error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state.Terminal() {
		return
	}
	op.err = err
	op.state = StateRejected
	op.finishLocked()
}

// OnCancel implements Settler.
func (op *Operation[T]) OnCancel(fn func()) {
	if fn == nil {
		return
	}
	op.mu.Lock()
	switch op.state {
	case StateCanceled:
		op.mu.Unlock()
		fn()
		return
	case StateResolved, StateRejected:
		op.mu.Unlock()
		return
	}
	op.onCancel = append(op.onCancel, fn)
	op.mu.Unlock()
}

// Cancel cancels the operation. It is idempotent and a no-op after the operation settled.
func (op *Operation[T]) Cancel() {
	op.mu.Lock()
	if op.state.Terminal() {
		op.mu.Unlock()
		return
	}
	op.state = StateCanceled
	op.err = ErrCanceled
	callbacks := op.onCancel
	op.onCancel = nil
	op.finishLocked()
	op.mu.Unlock()

	op.cancel()
	for _, fn := range callbacks {
		fn()
	}
}

// finishLocked closes done and releases the token. Callers hold op.mu.
func (op *Operation[T]) finishLocked() {
	close(op.done)
	if op.stopParent != nil {
		op.stopParent()
	}
	if op.state != StateCanceled {
		op.onCancel = nil
		op.cancel()
	}
}

// State returns the current state.
func (op *Operation[T]) State() OperationState {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

// Canceled reports whether the operation ended in the canceled state.
func (op *Operation[T]) Canceled() bool {
	return op.State() == StateCanceled
}

// Done is closed once the operation reaches a terminal state.
func (op *Operation[T]) Done() <-chan struct{} {
	return op.done
}

// Wait blocks until the operation settles or ctx is done. Abandoning the wait does not
// cancel the operation.
func (op *Operation[T]) Wait(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-op.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.value, op.err
}
