// Package scheduler runs recursively spawned crawl tasks with bounded
// concurrency and a completion barrier.
//
// A crawl starts from a handful of root tasks, and every task may schedule
// more tasks while it runs. The total number of tasks is unknown until the
// crawl is over, so callers cannot simply count them up front. Instead the
// Scheduler keeps an active-task counter (the Barrier) that is incremented
// synchronously inside Schedule, before the goroutine is started, and
// decremented once the task has returned. Because a running task schedules
// its children before it returns, the counter can only reach zero after every
// task ever scheduled has completed.
//
// # Components
//
//   - Barrier: the active-task counter and its one-time wake signal
//   - Permits: a closable counting semaphore gating how many tasks run at once
//   - Scheduler: the Schedule primitive tying both together
//
// # Usage
//
//	s := scheduler.New(scheduler.WithLogger(logger))
//	release := s.Fence()
//	for _, course := range courses {
//	    s.Schedule(ctx, "course", expand(course))
//	}
//	release()
//	if err := s.Wait(ctx); err != nil {
//	    return err
//	}
//
// # Invariant violations
//
// Acquiring a permit from a closed pool and decrementing the barrier below
// zero are scheduler bugs, not runtime conditions. Both panic. Any other panic
// inside a task is recovered and counts as a failed task.
//
// # Cancellation
//
// Wait drains: after ctx is done it still blocks until the counter reaches
// zero. Tasks scheduled after cancellation are dropped without acquiring a
// permit, so the pool can be closed as soon as Wait returns.
package scheduler
