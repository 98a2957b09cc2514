package future

import (
	"context"
	"sync"
)

// Chainer is satisfied by handles that support continuation registration.
type Chainer interface {
	Handle
	Then(fn func(Outcome))
}

// Chainable is a Future that additionally runs registered continuations
// when it settles. Each continuation runs exactly once with the terminal
// outcome; continuations registered after settlement run immediately on
// the registering goroutine.
type Chainable struct {
	f *Future

	mu        sync.Mutex
	callbacks []func(Outcome)
}

// NewChainable returns a pending Chainable.
func NewChainable() *Chainable {
	return &Chainable{f: New()}
}

// complete settles the handle and fires continuations if this call won.
func (c *Chainable) complete(o Outcome) bool {
	if !c.f.settle(o) {
		return false
	}
	c.mu.Lock()
	cbs := c.callbacks
	c.callbacks = nil
	c.mu.Unlock()
	for _, fn := range cbs {
		invoke(fn, o)
	}
	return true
}

// invoke shields the handle from continuation panics.
func invoke(fn func(Outcome), o Outcome) {
	defer func() {
		_ = recover()
	}()
	fn(o)
}

// Resolve settles the handle with a value.
func (c *Chainable) Resolve(v any) bool {
	return c.complete(Outcome{Value: v})
}

// Reject settles the handle with a failure cause.
func (c *Chainable) Reject(err error) bool {
	return c.complete(Outcome{Err: err})
}

// Cancel settles the handle with ErrCancelled.
func (c *Chainable) Cancel() bool {
	return c.complete(Outcome{Err: ErrCancelled})
}

// Then registers a continuation. If the handle has already settled, fn
// runs immediately with the same outcome every other continuation saw.
func (c *Chainable) Then(fn func(Outcome)) {
	c.mu.Lock()
	if o, ok := c.f.TryGet(); ok {
		c.mu.Unlock()
		invoke(fn, o)
		return
	}
	c.callbacks = append(c.callbacks, fn)
	c.mu.Unlock()
}

// Chan returns a channel view of the handle: it delivers the outcome once
// and is then closed. This is the composition-friendly shape for select
// loops and fan-in.
func (c *Chainable) Chan() <-chan Outcome {
	ch := make(chan Outcome, 1)
	c.Then(func(o Outcome) {
		ch <- o
		close(ch)
	})
	return ch
}

// Get blocks until the handle settles or ctx is done.
func (c *Chainable) Get(ctx context.Context) (any, error) {
	return c.f.Get(ctx)
}

// TryGet reports the outcome without blocking.
func (c *Chainable) TryGet() (Outcome, bool) {
	return c.f.TryGet()
}

// Done is closed once the handle has settled.
func (c *Chainable) Done() <-chan struct{} {
	return c.f.Done()
}
