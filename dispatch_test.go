package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asynckit/dispatch/future"
	"github.com/asynckit/dispatch/pool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingHandler captures every failure routed to the error handler.
type recordingHandler struct {
	mu      sync.Mutex
	records []record
	seen    chan record
}

type record struct {
	err  error
	meta CallMeta
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: make(chan record, 16)}
}

func (h *recordingHandler) HandleError(err error, meta CallMeta) {
	h.mu.Lock()
	h.records = append(h.records, record{err: err, meta: meta})
	h.mu.Unlock()
	h.seen <- record{err: err, meta: meta}
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func (h *recordingHandler) wait(t *testing.T) record {
	t.Helper()
	select {
	case r := <-h.seen:
		return r
	case <-time.After(time.Second):
		t.Fatal("error handler never invoked")
		return record{}
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *recordingHandler) {
	t.Helper()
	w := pool.NewWorkers(2, 4, testLogger())
	t.Cleanup(w.Stop)
	h := newRecordingHandler()
	d := New(w, WithErrorHandler(h), WithLogger(testLogger()))
	return d, h
}

func TestDispatchFutureResolvesToValue(t *testing.T) {
	d, h := newTestDispatcher(t)

	handle, err := d.Dispatch(func() (any, error) {
		return 42, nil
	}, ContractFuture, CallMeta{Method: "Calc.Answer"})
	require.NoError(t, err)
	require.NotNil(t, handle)

	v, err := handle.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Zero(t, h.count(), "error handler must not run for future contracts")
}

func TestDispatchFutureCarriesFailure(t *testing.T) {
	d, h := newTestDispatcher(t)

	cause := errors.New("x")
	handle, err := d.Dispatch(func() (any, error) {
		return nil, cause
	}, ContractFuture, CallMeta{Method: "Calc.Fail"})
	require.NoError(t, err, "dispatch itself must succeed even if the call will fail")
	require.NotNil(t, handle)

	_, err = handle.Get(context.Background())
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, h.count(), "failure belongs to the handle, not the handler")
}

func TestDispatchVoidRoutesFailureToHandler(t *testing.T) {
	d, h := newTestDispatcher(t)

	cause := errors.New("x")
	args := []any{"input", 3}
	handle, err := d.Dispatch(func() (any, error) {
		return nil, cause
	}, ContractVoid, CallMeta{Method: "Job.Run", Args: args})
	require.NoError(t, err)
	assert.Nil(t, handle, "void contract returns no handle")

	r := h.wait(t)
	assert.ErrorIs(t, r.err, cause)
	assert.Equal(t, "Job.Run", r.meta.Method)
	assert.Equal(t, args, r.meta.Args)
	assert.NotEmpty(t, r.meta.ID, "dispatch assigns an invocation ID")

	// Exactly once.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.count())
}

func TestDispatchVoidSuccess(t *testing.T) {
	d, h := newTestDispatcher(t)

	ran := make(chan struct{})
	handle, err := d.Dispatch(func() (any, error) {
		close(ran)
		return nil, nil
	}, ContractVoid, CallMeta{Method: "Job.OK"})
	require.NoError(t, err)
	assert.Nil(t, handle)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("void call never executed")
	}
	assert.Zero(t, h.count())
}

func TestDispatchOtherTreatedAsVoid(t *testing.T) {
	d, h := newTestDispatcher(t)

	cause := errors.New("unobserved")
	handle, err := d.Dispatch(func() (any, error) {
		return nil, cause
	}, ContractOther, CallMeta{Method: "Job.Foreign"})
	require.NoError(t, err)
	assert.Nil(t, handle)

	r := h.wait(t)
	assert.ErrorIs(t, r.err, cause)
}

func TestDispatchUnwrapsInnerFuture(t *testing.T) {
	d, _ := newTestDispatcher(t)

	inner := future.New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		inner.Resolve("done")
	}()

	handle, err := d.Dispatch(func() (any, error) {
		// The target itself returns a future-like value.
		return inner, nil
	}, ContractFuture, CallMeta{Method: "Job.Nested"})
	require.NoError(t, err)

	v, err := handle.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v, "outer handle must carry the inner result, not the inner handle")
}

func TestDispatchUnwrapsInnerFutureFailure(t *testing.T) {
	d, h := newTestDispatcher(t)

	cause := errors.New("inner blew up")
	inner := future.New()
	inner.Reject(cause)

	// Void contract: the unwrapped inner failure goes to the handler.
	_, err := d.Dispatch(func() (any, error) {
		return inner, nil
	}, ContractVoid, CallMeta{Method: "Job.NestedVoid"})
	require.NoError(t, err)

	r := h.wait(t)
	assert.ErrorIs(t, r.err, cause)
}

func TestDispatchChainableContinuationMatchesPolling(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	handle, err := d.Dispatch(func() (any, error) {
		<-release
		return "outcome", nil
	}, ContractChainable, CallMeta{Method: "Job.Chained"})
	require.NoError(t, err)

	c, ok := handle.(*future.Chainable)
	require.True(t, ok, "chainable contract must produce a chainable handle")

	got := make(chan future.Outcome, 1)
	c.Then(func(o future.Outcome) { got <- o })

	close(release)

	polled, err := c.Get(context.Background())
	require.NoError(t, err)

	select {
	case o := <-got:
		assert.Equal(t, polled, o.Value)
		assert.NoError(t, o.Err)
	case <-time.After(time.Second):
		t.Fatal("continuation never ran")
	}
}

func TestDispatchChan(t *testing.T) {
	d, _ := newTestDispatcher(t)

	ch, err := d.DispatchChan(func() (any, error) {
		return "via channel", nil
	}, CallMeta{Method: "Job.Chan"})
	require.NoError(t, err)

	select {
	case o := <-ch:
		require.NoError(t, o.Err)
		assert.Equal(t, "via channel", o.Value)
	case <-time.After(time.Second):
		t.Fatal("channel never delivered")
	}

	_, open := <-ch
	assert.False(t, open)
}

func TestDispatchNoExecutor(t *testing.T) {
	d := New(nil, WithLogger(testLogger()))

	handle, err := d.Dispatch(func() (any, error) {
		t.Error("task must not run when no executor resolves")
		return nil, nil
	}, ContractFuture, CallMeta{Method: "Job.Orphan"})

	assert.ErrorIs(t, err, ErrNoExecutor)
	assert.Nil(t, handle)
}

func TestDispatchConcurrentNoCrossTalk(t *testing.T) {
	d, h := newTestDispatcher(t)

	const n = 50
	handles := make([]future.Handle, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = d.Dispatch(func() (any, error) {
				return fmt.Sprintf("v-%d", i), nil
			}, ContractFuture, CallMeta{Method: fmt.Sprintf("Job.N%d", i)})
		}(i)
	}
	wg.Wait()

	for i, handle := range handles {
		require.NoError(t, errs[i])
		v, err := handle.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("v-%d", i), v)
	}
	assert.Zero(t, h.count())
}

func TestDispatchQualifierSelectsRegisteredPool(t *testing.T) {
	def := pool.NewSpawner()
	t.Cleanup(def.Stop)
	slow := pool.NewSpawner()
	t.Cleanup(slow.Stop)

	reg := pool.NewRegistry(nil)
	reg.Register("slow", slow)

	var resolved []string
	d := New(def,
		WithRegistry(reg),
		WithLogger(testLogger()),
		WithResolver(ResolverFunc(func(method string) string {
			resolved = append(resolved, method)
			if method == "Report.Monthly" {
				return "slow"
			}
			return ""
		})),
	)

	h, err := d.Dispatch(func() (any, error) { return 1, nil },
		ContractFuture, CallMeta{Method: "Report.Monthly"})
	require.NoError(t, err)
	_, err = h.Get(context.Background())
	require.NoError(t, err)

	h, err = d.Dispatch(func() (any, error) { return 2, nil },
		ContractFuture, CallMeta{Method: "Report.Daily"})
	require.NoError(t, err)
	_, err = h.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Report.Monthly", "Report.Daily"}, resolved)
}

func TestDispatchQualifierMissFallsBackToDefault(t *testing.T) {
	def := pool.NewSpawner()
	t.Cleanup(def.Stop)

	d := New(def,
		WithRegistry(pool.NewRegistry(nil)),
		WithLogger(testLogger()),
		WithResolver(ResolverFunc(func(string) string { return "missing" })),
	)

	h, err := d.Dispatch(func() (any, error) { return "ok", nil },
		ContractFuture, CallMeta{Method: "Job.Fallback"})
	require.NoError(t, err)

	v, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDispatchPanickingHandlerIsContained(t *testing.T) {
	w := pool.NewWorkers(1, 1, testLogger())
	t.Cleanup(w.Stop)

	invoked := make(chan struct{})
	d := New(w,
		WithLogger(testLogger()),
		WithErrorHandler(ErrorHandlerFunc(func(error, CallMeta) {
			close(invoked)
			panic("handler bug")
		})),
	)

	_, err := d.Dispatch(func() (any, error) {
		return nil, errors.New("boom")
	}, ContractVoid, CallMeta{Method: "Job.BadHandler"})
	require.NoError(t, err)

	select {
	case <-invoked:
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}

	// The worker survived the handler panic.
	f, err := d.Dispatch(func() (any, error) { return "still here", nil },
		ContractFuture, CallMeta{Method: "Job.After"})
	require.NoError(t, err)
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still here", v)
}

// plainExec strips the chainable capability from an executor, forcing the
// dispatcher to bridge plain futures into chainable handles.
type plainExec struct {
	inner pool.Executor
}

func (p plainExec) Submit(task pool.Task) (*future.Future, error) {
	return p.inner.Submit(task)
}

func TestDispatchChainableBridgesPlainExecutor(t *testing.T) {
	s := pool.NewSpawner()
	t.Cleanup(s.Stop)

	d := New(plainExec{inner: s}, WithLogger(testLogger()))

	handle, err := d.Dispatch(func() (any, error) {
		return "bridged", nil
	}, ContractChainable, CallMeta{Method: "Job.Bridge"})
	require.NoError(t, err)

	c, ok := handle.(*future.Chainable)
	require.True(t, ok)

	select {
	case o := <-c.Chan():
		require.NoError(t, o.Err)
		assert.Equal(t, "bridged", o.Value)
	case <-time.After(time.Second):
		t.Fatal("bridged handle never resolved")
	}
}

func TestDispatchVoidPanicReachesHandler(t *testing.T) {
	d, h := newTestDispatcher(t)

	_, err := d.Dispatch(func() (any, error) {
		panic("call blew up")
	}, ContractVoid, CallMeta{Method: "Job.Panicky"})
	require.NoError(t, err)

	r := h.wait(t)
	require.ErrorIs(t, r.err, pool.ErrPanic)
	assert.Contains(t, r.err.Error(), "call blew up")
}

func TestDispatchFuturePanicCarriedByHandle(t *testing.T) {
	d, h := newTestDispatcher(t)

	handle, err := d.Dispatch(func() (any, error) {
		panic("call blew up")
	}, ContractFuture, CallMeta{Method: "Job.PanickyFuture"})
	require.NoError(t, err)

	_, err = handle.Get(context.Background())
	require.ErrorIs(t, err, pool.ErrPanic)
	assert.Zero(t, h.count())
}

func TestDispatchCancelSuppressesDelivery(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	handle, err := d.Dispatch(func() (any, error) {
		<-release
		return "late", nil
	}, ContractFuture, CallMeta{Method: "Job.Cancelled"})
	require.NoError(t, err)

	require.True(t, handle.Cancel())
	close(release)

	_, err = handle.Get(context.Background())
	assert.ErrorIs(t, err, future.ErrCancelled,
		"a cancelled handle must never deliver the task's result")
}

func TestContractOf(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		want Contract
	}{
		{
			name: "nil type is void",
			typ:  nil,
			want: ContractVoid,
		},
		{
			name: "receive channel of outcomes",
			typ:  reflect.TypeOf((<-chan future.Outcome)(nil)),
			want: ContractChannel,
		},
		{
			name: "bidirectional channel of outcomes",
			typ:  reflect.TypeOf((chan future.Outcome)(nil)),
			want: ContractChannel,
		},
		{
			name: "send-only channel is not a result shape",
			typ:  reflect.TypeOf((chan<- future.Outcome)(nil)),
			want: ContractOther,
		},
		{
			name: "chainable beats plain handle",
			typ:  reflect.TypeOf((*future.Chainable)(nil)),
			want: ContractChainable,
		},
		{
			name: "plain future",
			typ:  reflect.TypeOf((*future.Future)(nil)),
			want: ContractFuture,
		},
		{
			name: "handle interface",
			typ:  reflect.TypeOf((*future.Handle)(nil)).Elem(),
			want: ContractFuture,
		},
		{
			name: "arbitrary type",
			typ:  reflect.TypeOf(""),
			want: ContractOther,
		},
		{
			name: "channel of something else",
			typ:  reflect.TypeOf((<-chan int)(nil)),
			want: ContractOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContractOf(tt.typ))
		})
	}
}
