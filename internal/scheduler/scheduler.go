package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Task is one unit of crawl work. A task may call Schedule on its own
// scheduler to spawn children. A returned error is logged and swallowed.
type Task func(ctx context.Context) error

// Scheduler spawns tasks under a shared permit pool and tracks them with a
// Barrier. One Scheduler serves exactly one phase of a run.
type Scheduler struct {
	phase   string
	barrier *Barrier
	permits *Permits
	logger  *slog.Logger

	completed atomic.Int64
	failed    atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for task failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithPermits shares an existing permit pool. Both phases of a run use the
// same pool so that at most Capacity() tasks execute at once overall.
func WithPermits(p *Permits) Option {
	return func(s *Scheduler) {
		s.permits = p
	}
}

// WithPhase names the phase for log attributes.
func WithPhase(phase string) Option {
	return func(s *Scheduler) {
		s.phase = phase
	}
}

// WithObserver registers fn to receive the active-task count after every
// change. Used by tests to record the counter trace.
func WithObserver(fn func(active int64)) Option {
	return func(s *Scheduler) {
		s.barrier.observe = fn
	}
}

// New creates a Scheduler with its own Barrier.
// Without WithPermits a private pool of DefaultConcurrency slots is used.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		phase:   "crawl",
		barrier: NewBarrier(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.permits == nil {
		s.permits = NewPermits(DefaultConcurrency)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Schedule runs task on its own goroutine once a permit is free.
//
// The barrier is incremented before Schedule returns, so a parent task that
// schedules its children keeps the counter above zero until all of them are
// accounted for. Schedule never blocks on the permit pool.
func (s *Scheduler) Schedule(ctx context.Context, name string, task Task) {
	s.barrier.Add()
	go s.run(ctx, name, task)
}

func (s *Scheduler) run(ctx context.Context, name string, task Task) {
	defer s.barrier.Done()

	// A child scheduled after cancellation never touches the pool.
	if err := ctx.Err(); err != nil {
		s.failed.Add(1)
		s.logger.Debug("task dropped before start", "phase", s.phase, "task", name, "error", err)
		return
	}
	release, err := s.permits.Acquire(ctx)
	if err != nil {
		s.failed.Add(1)
		s.logger.Debug("task dropped before start", "phase", s.phase, "task", name, "error", err)
		return
	}
	err = call(ctx, task)
	release()

	if err != nil {
		s.failed.Add(1)
		s.logger.Error("task failed", "phase", s.phase, "task", name, "error", err)
		return
	}
	s.completed.Add(1)
}

// call runs task and turns a panic into an error. Scheduler invariant
// violations raised inside the task keep panicking.
func call(ctx context.Context, task Task) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && isInvariantViolation(e) {
			panic(r)
		}
		err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
	}()
	return task(ctx)
}

// Fence holds the barrier open while the caller seeds root tasks.
// Without it the first root task could finish, and fire the barrier, before
// the second one is scheduled. The returned release is idempotent.
func (s *Scheduler) Fence() func() {
	s.barrier.Add()
	return sync.OnceFunc(s.barrier.Done)
}

// Wait blocks until every scheduled task has completed. A done ctx makes
// Wait return ctx.Err(), but only once the remaining tasks have drained.
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.barrier.Wait(ctx)
}

// Active returns the number of scheduled tasks that have not completed.
func (s *Scheduler) Active() int64 {
	return s.barrier.Active()
}

// Completed returns the number of tasks that returned nil.
func (s *Scheduler) Completed() int64 {
	return s.completed.Load()
}

// Failed returns the number of tasks that returned an error or never started.
func (s *Scheduler) Failed() int64 {
	return s.failed.Load()
}
