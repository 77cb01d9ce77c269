package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Work is a table with its current run configuration, usually a session.
type Work interface {
	Table() *Table
	RunConfig() RunConfig
}

// PendingFunc lists work that still has queued or processing jobs. The
// runner calls it on every sweep.
type PendingFunc func() []Work

// Runner drives Advance from an explicit event loop: after each
// state-changing action (Notify) and on a periodic sweep.
type Runner struct {
	sched    *Scheduler
	pending  PendingFunc
	workers  int
	interval time.Duration

	ch     chan Work
	wg     sync.WaitGroup
	once   sync.Once
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type RunnerOption func(*Runner)

func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithSweep(fn PendingFunc, interval time.Duration) RunnerOption {
	return func(r *Runner) {
		r.pending = fn
		if interval > 0 {
			r.interval = interval
		}
	}
}

func WithBacklog(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.ch = make(chan Work, n)
		}
	}
}

func NewRunner(sched *Scheduler, opts ...RunnerOption) *Runner {
	r := &Runner{
		sched:    sched,
		workers:  1,
		interval: 5 * time.Second,
		ch:       make(chan Work, 64),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start launches the workers and the sweep loop. Calling it twice is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.once.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.worker(ctx, i+1)
		}
		if r.pending != nil {
			r.wg.Add(1)
			go r.sweep(ctx)
		}
	})
}

// Notify schedules w for processing. It never blocks; when the backlog is
// full the next sweep picks the work up.
func (r *Runner) Notify(w Work) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- w:
	default:
		slog.Warn("runner backlog full, deferring to sweep", "table", w.Table().Key())
	}
}

// Shutdown stops accepting work and waits for in-flight pipelines to finish
// or ctx to expire. Workers stop draining after their current pipeline;
// jobs still queued stay queued.
func (r *Runner) Shutdown(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		slog.Warn("runner shutdown interrupted by context")
	case <-done:
		slog.Info("runner drained")
	}
	if r.cancel != nil {
		r.cancel()
	}
}

// Drain advances w until it reports no more work, ctx ends or the runner
// is shut down.
func (r *Runner) Drain(ctx context.Context, w Work) int {
	steps := 0
	for ctx.Err() == nil && !r.isClosed() && r.sched.Advance(ctx, w.Table(), w.RunConfig()) {
		steps++
	}
	return steps
}

func (r *Runner) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	slog.Debug("runner worker started", "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-r.ch:
			if !ok {
				return
			}
			if n := r.Drain(ctx, w); n > 0 {
				slog.Debug("table drained", "worker_id", id, "table", w.Table().Key(), "steps", n)
			}
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.isClosed() {
				return
			}
			for _, w := range r.pending() {
				r.Notify(w)
			}
		}
	}
}
