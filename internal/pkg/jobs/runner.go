// Package jobs runs fire-and-forget side effects (notification sends,
// delayed reconciliation) on a bounded worker pool instead of bare
// goroutines, so failures and panics are always captured and logged.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Runner is a fixed-size worker pool consuming queued tasks. Task errors are
// logged and dropped; nothing is retried.
type Runner struct {
	tasks    chan task
	wg       sync.WaitGroup
	timerWG  sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewRunner starts workers goroutines draining the task queue.
func NewRunner(workers, queueSize int) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		tasks:  make(chan task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case t, ok := <-r.tasks:
			if !ok {
				return
			}
			r.run(t)
		}
	}
}

func (r *Runner) run(t task) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("jobs: task %s panicked: %v", t.name, p)
		}
	}()

	if err := t.fn(r.ctx); err != nil {
		log.Printf("jobs: task %s failed: %v", t.name, err)
	}
}

// Submit queues a task. When the queue is full the task is dropped with a
// warning rather than blocking the caller; every producer here is a
// best-effort side effect.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) {
	select {
	case <-r.ctx.Done():
		log.Printf("jobs: runner stopped, dropping task %s", name)
	case r.tasks <- task{name: name, fn: fn}:
	default:
		log.Printf("jobs: queue full, dropping task %s", name)
	}
}

// SubmitAfter queues a task once the delay elapses. Used for the
// post-completion settle window before reconciliation.
func (r *Runner) SubmitAfter(delay time.Duration, name string, fn func(ctx context.Context) error) {
	r.timerWG.Add(1)
	timer := time.NewTimer(delay)

	go func() {
		defer r.timerWG.Done()
		defer timer.Stop()

		select {
		case <-r.ctx.Done():
		case <-timer.C:
			r.Submit(name, fn)
		}
	}()
}

// Shutdown stops accepting work and waits for in-flight tasks, or returns
// early when the context expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(r.cancel)

	done := make(chan struct{})
	go func() {
		r.timerWG.Wait()
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
