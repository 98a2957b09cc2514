// Package future provides the eventual-result handles returned by the
// asynchronous dispatcher. A handle is created pending and transitions to
// exactly one terminal state: resolved with a value, rejected with an error,
// or cancelled. The resolve-once guarantee holds under concurrent use.
package future

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the failure cause of a handle whose Cancel won the
// resolution race.
var ErrCancelled = errors.New("future: cancelled")

// Outcome is the terminal state of a handle.
type Outcome struct {
	Value any
	Err   error
}

// Handle is the read side of an eventual result. Both *Future and
// *Chainable satisfy it.
type Handle interface {
	// Get blocks until the handle settles or ctx is done.
	Get(ctx context.Context) (any, error)

	// TryGet reports the outcome without blocking. The second return
	// value is false while the handle is still pending.
	TryGet() (Outcome, bool)

	// Done is closed once the handle has settled.
	Done() <-chan struct{}

	// Cancel settles the handle with ErrCancelled unless it already
	// settled. It reports whether the cancellation won. The underlying
	// task is not stopped; only delivery of its result is suppressed.
	Cancel() bool
}

// Future is a single-resolution eventual result.
type Future struct {
	mu      sync.Mutex
	done    chan struct{}
	outcome Outcome
	settled bool
}

// New returns a pending Future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// settle records the outcome if the future is still pending and reports
// whether this call won the race.
func (f *Future) settle(o Outcome) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false
	}
	f.settled = true
	f.outcome = o
	close(f.done)
	return true
}

// Resolve settles the future with a value.
func (f *Future) Resolve(v any) bool {
	return f.settle(Outcome{Value: v})
}

// Reject settles the future with a failure cause.
func (f *Future) Reject(err error) bool {
	return f.settle(Outcome{Err: err})
}

// Cancel settles the future with ErrCancelled.
func (f *Future) Cancel() bool {
	return f.settle(Outcome{Err: ErrCancelled})
}

// Done is closed once the future has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future settles or ctx is done.
func (f *Future) Get(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.outcome.Value, f.outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryGet reports the outcome without blocking.
func (f *Future) TryGet() (Outcome, bool) {
	select {
	case <-f.done:
		return f.outcome, true
	default:
		return Outcome{}, false
	}
}
