package scheduler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of tasks allowed to run at once.
// Canvas starts throttling (403) well before this many parallel requests
// per token would saturate a home connection.
const DefaultConcurrency = 8

// Permits is a fixed-capacity pool of execution slots shared by every
// scheduler of a run.
//
// Design decision: We wrap semaphore.Weighted rather than using
// errgroup.SetLimit because:
//  1. Recursive spawning must never block the spawner; errgroup.Go blocks
//     the caller when the limit is reached, which deadlocks a parent that
//     holds a slot while scheduling its children
//  2. The pool outlives a single phase and must be closable
type Permits struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
	closed   atomic.Bool
}

// NewPermits creates a pool with n slots. Non-positive n means DefaultConcurrency.
func NewPermits(n int) *Permits {
	if n <= 0 {
		n = DefaultConcurrency
	}
	return &Permits{
		sem:      semaphore.NewWeighted(int64(n)),
		capacity: int64(n),
	}
}

// Acquire blocks until a slot is free and returns its release function.
// It returns an error only when ctx is done first. Acquiring from a closed
// pool panics with ErrPermitsClosed.
func (p *Permits) Acquire(ctx context.Context) (func(), error) {
	if p.closed.Load() {
		panic(ErrPermitsClosed)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if p.closed.Load() {
		p.sem.Release(1)
		panic(ErrPermitsClosed)
	}
	p.inUse.Add(1)

	var released atomic.Bool
	return func() {
		if released.Swap(true) {
			return
		}
		p.inUse.Add(-1)
		p.sem.Release(1)
	}, nil
}

// Close poisons the pool. Any later Acquire panics.
func (p *Permits) Close() {
	p.closed.Store(true)
}

// InUse returns the number of slots currently held.
func (p *Permits) InUse() int64 {
	return p.inUse.Load()
}

// Capacity returns the pool size.
func (p *Permits) Capacity() int64 {
	return p.capacity
}
