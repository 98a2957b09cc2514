// Package pool contains the worker-pool side of the dispatcher: the
// Executor interfaces the dispatch core submits tasks through, two
// production implementations (a fixed worker pool and a goroutine-per-task
// spawner), and a registry for qualifier-based pool selection.
package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/asynckit/dispatch/future"
)

// Task is a unit of work an executor runs on one of its workers. The ctx
// is the executor's lifecycle context and is cancelled once the executor
// has fully stopped.
type Task func(ctx context.Context) (any, error)

// Executor accepts tasks and returns a single-resolution handle per task.
// Submit must be safe for concurrent use.
type Executor interface {
	Submit(task Task) (*future.Future, error)
}

// ChainExecutor is an optional executor capability: submission that
// returns a continuation-capable handle.
type ChainExecutor interface {
	SubmitChainable(task Task) (*future.Chainable, error)
}

// Stopper is implemented by executors with an explicit shutdown.
type Stopper interface {
	Stop()
}

var (
	// ErrStopped is returned by Submit after the executor has been stopped.
	ErrStopped = errors.New("pool: executor stopped")

	// ErrPanic is the failure cause recorded when a task panics.
	ErrPanic = errors.New("pool: task panicked")
)

// settler is the write side shared by *future.Future and *future.Chainable.
type settler interface {
	Resolve(v any) bool
	Reject(err error) bool
}

// job pairs a task with the handle its outcome settles.
type job struct {
	task Task
	out  settler
}

// execute runs one job and settles its handle, converting panics into
// rejections so a misbehaving task cannot kill a worker.
func execute(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			j.out.Reject(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()
	v, err := j.task(ctx)
	if err != nil {
		j.out.Reject(err)
		return
	}
	j.out.Resolve(v)
}
