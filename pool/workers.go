package pool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eapache/queue"

	"github.com/asynckit/dispatch/future"
)

// Workers is a fixed-size worker pool. Submissions land in an unbounded
// FIFO and are fed to the workers through a buffered channel, so Submit
// never blocks and never rejects while the pool is running. Stop drains
// everything already accepted before returning.
type Workers struct {
	logger *slog.Logger
	tasks  chan job

	mu      sync.Mutex
	cond    *sync.Cond
	pending *queue.Queue
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	feed   sync.WaitGroup
}

// NewWorkers starts a pool with the given number of workers and feed
// channel capacity. Non-positive values fall back to one worker and twice
// the worker count respectively.
func NewWorkers(workers, buffer int, logger *slog.Logger) *Workers {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 2 * workers
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Workers{
		logger:  logger,
		tasks:   make(chan job, buffer),
		pending: queue.New(),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.cond = sync.NewCond(&w.mu)

	logger.Info("starting worker pool", "workers", workers, "buffer", buffer)
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
	w.feed.Add(1)
	go w.feeder()
	return w
}

// Submit queues a task and returns its single-resolution handle.
func (w *Workers) Submit(task Task) (*future.Future, error) {
	f := future.New()
	if err := w.enqueue(job{task: task, out: f}); err != nil {
		return nil, err
	}
	return f, nil
}

// SubmitChainable queues a task and returns a continuation-capable handle.
func (w *Workers) SubmitChainable(task Task) (*future.Chainable, error) {
	c := future.NewChainable()
	if err := w.enqueue(job{task: task, out: c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (w *Workers) enqueue(j job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	w.pending.Add(j)
	w.cond.Signal()
	return nil
}

// feeder moves accepted jobs from the pending queue to the task channel,
// preserving submission order. It closes the channel once the pool is
// stopped and the queue has drained.
func (w *Workers) feeder() {
	defer w.feed.Done()
	for {
		w.mu.Lock()
		for w.pending.Length() == 0 && !w.stopped {
			w.cond.Wait()
		}
		if w.pending.Length() == 0 {
			w.mu.Unlock()
			close(w.tasks)
			return
		}
		j := w.pending.Remove().(job)
		w.mu.Unlock()
		w.tasks <- j
	}
}

func (w *Workers) worker(id int) {
	defer w.wg.Done()
	w.logger.Debug("worker started", "id", id)
	for j := range w.tasks {
		execute(w.ctx, j)
	}
	w.logger.Debug("worker stopped", "id", id)
}

// Stop rejects new submissions, waits for every accepted task to run, and
// then cancels the lifecycle context. Safe to call more than once.
func (w *Workers) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.cond.Signal()
	w.mu.Unlock()

	w.logger.Info("stopping worker pool, draining queued tasks")
	w.feed.Wait()
	w.wg.Wait()
	w.cancel()
	w.logger.Info("worker pool stopped")
}
