package scheduler

import "errors"

// Invariant violations. These are raised with panic, never returned.
var (
	// ErrPermitsClosed is the panic value when a task tries to acquire a
	// permit after the pool was closed. The pool is only closed after the
	// final barrier fired, so a late acquirer means a task escaped the barrier.
	ErrPermitsClosed = errors.New("scheduler: permit pool used after close (task escaped the completion barrier)")

	// ErrNegativeBarrier is the panic value when the active-task counter
	// drops below zero, i.e. some task completed twice.
	ErrNegativeBarrier = errors.New("scheduler: active task counter went negative")

	// ErrBarrierReused is the panic value when work is added to a barrier
	// that has already fired.
	ErrBarrierReused = errors.New("scheduler: task scheduled after the completion barrier fired")
)

// ErrTaskPanicked wraps the value of a panic recovered from a task. The
// task counts as failed and its siblings keep running.
var ErrTaskPanicked = errors.New("scheduler: task panicked")

func isInvariantViolation(err error) bool {
	return errors.Is(err, ErrPermitsClosed) ||
		errors.Is(err, ErrNegativeBarrier) ||
		errors.Is(err, ErrBarrierReused)
}
