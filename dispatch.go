// Package dispatch turns synchronous-looking calls into asynchronous ones:
// Dispatch hands the call to a worker pool and immediately returns a handle
// for its eventual result, shaped by the call's declared return contract.
//
// Failure propagation is deliberately asymmetric. Contracts with an error
// channel (future, chainable, channel) carry the failure in the returned
// handle and never touch the ErrorHandler; void and unrecognized contracts
// return nothing, so their failures are routed to the ErrorHandler and the
// caller never observes them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/asynckit/dispatch/future"
	"github.com/asynckit/dispatch/pool"
)

// ErrNoExecutor is returned synchronously by Dispatch when no executor
// resolves for the call and no default is configured. No task is submitted
// in that case.
var ErrNoExecutor = errors.New("dispatch: no executor resolved and no default configured")

// Call is one already-bound, zero-argument unit of work. Its result may
// itself be a future-like handle, in which case the dispatcher unwraps it
// on the worker goroutine so the outer handle reflects the real outcome.
type Call func() (any, error)

// CallMeta is the diagnostic context of one dispatched call. Method and
// Args exist purely for reporting; they never influence execution. An
// empty ID is filled with a fresh UUID at dispatch time.
type CallMeta struct {
	ID     string
	Method string
	Args   []any
}

// waiter matches any future-like value a call may itself return.
type waiter interface {
	Get(ctx context.Context) (any, error)
}

// Dispatcher is the orchestration core. It is safe for concurrent use;
// concurrently dispatched calls share nothing but the underlying executor.
type Dispatcher struct {
	def      pool.Executor
	registry *pool.Registry
	resolver Resolver
	handler  ErrorHandler
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRegistry supplies named executors for qualifier-based selection.
func WithRegistry(r *pool.Registry) Option {
	return func(d *Dispatcher) { d.registry = r }
}

// WithResolver installs a qualifier resolver. The default resolver always
// defers to the default executor.
func WithResolver(r Resolver) Option {
	return func(d *Dispatcher) { d.resolver = r }
}

// WithErrorHandler replaces the default slog-backed handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(d *Dispatcher) { d.handler = h }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a Dispatcher with the given default executor, which may be
// nil when every call resolves through a registry qualifier.
func New(def pool.Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		def:      def,
		resolver: NopResolver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.handler == nil {
		d.handler = NewLogHandler(d.logger)
	}
	return d
}

// Dispatch submits the call for asynchronous execution and returns the
// eventual-result handle its contract declares:
//
//   - ContractChainable and ContractChannel: a *future.Chainable
//   - ContractFuture: a *future.Future
//   - ContractVoid and ContractOther: nil; failures go to the ErrorHandler
//
// Dispatch itself fails only when no executor resolves (ErrNoExecutor) or
// when the resolved executor rejects the submission.
func (d *Dispatcher) Dispatch(call Call, contract Contract, meta CallMeta) (future.Handle, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}

	exec, err := d.executor(meta)
	if err != nil {
		return nil, err
	}

	task := d.wrap(call, contract, meta)

	d.logger.Debug("dispatching call",
		"method", meta.Method,
		"invocation_id", meta.ID,
		"contract", contract.String(),
	)
	dispatchedTotal.WithLabelValues(contract.String()).Inc()

	switch contract {
	case ContractChainable, ContractChannel:
		c, err := submitChainable(exec, task)
		if err != nil {
			return nil, fmt.Errorf("dispatch: submitting %s: %w", meta.Method, err)
		}
		return c, nil
	case ContractFuture:
		f, err := exec.Submit(task)
		if err != nil {
			return nil, fmt.Errorf("dispatch: submitting %s: %w", meta.Method, err)
		}
		return f, nil
	default:
		// Fire and forget: the pool-native handle is discarded.
		if _, err := exec.Submit(task); err != nil {
			return nil, fmt.Errorf("dispatch: submitting %s: %w", meta.Method, err)
		}
		return nil, nil
	}
}

// DispatchChan dispatches under the channel contract and returns the
// channel view directly: one outcome, then closed.
func (d *Dispatcher) DispatchChan(call Call, meta CallMeta) (<-chan future.Outcome, error) {
	h, err := d.Dispatch(call, ContractChannel, meta)
	if err != nil {
		return nil, err
	}
	return h.(*future.Chainable).Chan(), nil
}

// executor resolves the pool for one call: a registry hit for the
// resolver's qualifier wins, anything else falls back to the default.
func (d *Dispatcher) executor(meta CallMeta) (pool.Executor, error) {
	if q := d.resolver.Qualifier(meta.Method); q != "" && d.registry != nil {
		if exec, ok := d.registry.Lookup(q); ok {
			return exec, nil
		}
		d.logger.Warn("no executor registered for qualifier, using default",
			"qualifier", q,
			"method", meta.Method,
		)
	}
	if d.def != nil {
		return d.def, nil
	}
	if d.registry != nil {
		if exec := d.registry.Default(); exec != nil {
			return exec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoExecutor, meta.Method)
}

// wrap builds the uniform pool task for one call. The task invokes the
// call, eagerly unwraps a future-like result by waiting for it on the
// worker goroutine, and applies the contract's failure policy.
func (d *Dispatcher) wrap(call Call, contract Contract, meta CallMeta) pool.Task {
	return func(ctx context.Context) (any, error) {
		runningTasks.Inc()
		defer runningTasks.Dec()

		v, err := run(ctx, call)
		if err != nil {
			if contract.carriesError() {
				taskFailuresTotal.WithLabelValues(pathSurfaced).Inc()
				return nil, err
			}
			taskFailuresTotal.WithLabelValues(pathHandled).Inc()
			d.handleError(err, meta)
			return nil, nil
		}
		return v, nil
	}
}

// run invokes the call and eagerly unwraps a future-like result. Panics
// are converted to failures here so the contract's propagation policy
// covers them too, instead of leaking into the pool's discarded handle.
func run(ctx context.Context, call Call) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("%w: %v", pool.ErrPanic, r)
		}
	}()
	v, err = call()
	if err == nil {
		if inner, ok := v.(waiter); ok {
			v, err = inner.Get(ctx)
		}
	}
	return v, err
}

// handleError invokes the ErrorHandler, containing any panic so a broken
// handler cannot take down a pool worker.
func (d *Dispatcher) handleError(err error, meta CallMeta) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("error handler panicked",
				"panic", r,
				"method", meta.Method,
				"invocation_id", meta.ID,
			)
		}
	}()
	d.handler.HandleError(err, meta)
}

// submitChainable prefers the executor's native chainable submission and
// otherwise bridges the plain handle into a chainable one.
func submitChainable(exec pool.Executor, task pool.Task) (*future.Chainable, error) {
	if ce, ok := exec.(pool.ChainExecutor); ok {
		return ce.SubmitChainable(task)
	}
	f, err := exec.Submit(task)
	if err != nil {
		return nil, err
	}
	c := future.NewChainable()
	go func() {
		v, err := f.Get(context.Background())
		if err != nil {
			c.Reject(err)
			return
		}
		c.Resolve(v)
	}()
	return c, nil
}
