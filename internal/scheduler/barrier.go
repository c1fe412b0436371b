package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Barrier counts outstanding tasks and wakes a single waiter when the count
// returns to zero.
//
// The barrier fires at most once. Adding work after it fired panics with
// ErrBarrierReused: a phase that needs another round gets a new Barrier.
type Barrier struct {
	active  atomic.Int64
	fired   atomic.Bool
	wake    chan struct{}
	once    sync.Once
	observe func(active int64)
}

// NewBarrier creates an idle barrier.
func NewBarrier() *Barrier {
	return &Barrier{wake: make(chan struct{})}
}

// Add registers one unit of outstanding work.
func (b *Barrier) Add() {
	if b.fired.Load() {
		panic(ErrBarrierReused)
	}
	v := b.active.Add(1)
	if b.observe != nil {
		b.observe(v)
	}
}

// Done completes one unit of work. The caller whose decrement reaches zero
// signals the waiter.
func (b *Barrier) Done() {
	v := b.active.Add(-1)
	if b.observe != nil {
		b.observe(v)
	}
	if v < 0 {
		panic(fmt.Errorf("%w: %d", ErrNegativeBarrier, v))
	}
	if v == 0 {
		b.once.Do(func() {
			b.fired.Store(true)
			close(b.wake)
		})
	}
}

// Active returns the current number of outstanding tasks.
func (b *Barrier) Active() int64 {
	return b.active.Load()
}

// Fired reports whether the barrier has reached zero.
func (b *Barrier) Fired() bool {
	return b.fired.Load()
}

// Wait blocks until the barrier fires.
//
// When ctx is done first, Wait still drains: it returns ctx.Err() only
// after every outstanding task has completed, so no task outlives the
// caller's view of the phase. Tasks are expected to observe ctx themselves.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.wake:
		return nil
	case <-ctx.Done():
	}
	<-b.wake
	return ctx.Err()
}
