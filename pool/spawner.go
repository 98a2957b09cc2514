package pool

import (
	"context"
	"sync"

	"github.com/asynckit/dispatch/future"
)

// Spawner runs each task on its own goroutine. It keeps no queue and
// applies no concurrency limit; use Workers when backpressure matters.
type Spawner struct {
	mu      sync.Mutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSpawner returns a running Spawner.
func NewSpawner() *Spawner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Spawner{ctx: ctx, cancel: cancel}
}

// Submit runs the task on a new goroutine and returns its handle.
func (s *Spawner) Submit(task Task) (*future.Future, error) {
	f := future.New()
	if err := s.spawn(job{task: task, out: f}); err != nil {
		return nil, err
	}
	return f, nil
}

// SubmitChainable runs the task on a new goroutine and returns a
// continuation-capable handle.
func (s *Spawner) SubmitChainable(task Task) (*future.Chainable, error) {
	c := future.NewChainable()
	if err := s.spawn(job{task: task, out: c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Spawner) spawn(j job) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		execute(s.ctx, j)
	}()
	return nil
}

// Stop rejects new submissions, waits for in-flight tasks, and cancels the
// lifecycle context.
func (s *Spawner) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
}
