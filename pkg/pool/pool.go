// ABOUTME: Generic reusable object pool
// ABOUTME: Lazily creates items through a factory and recycles freed ones
package pool

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Alloc after TerminateAll
var ErrClosed = errors.New("pool is terminated")

// Factory creates a new pool item. index counts every item the pool has
// created so far and is meant for naming (e.g. "worker3").
type Factory[T any] func(index int) (T, error)

// Pool hands out idle items or creates new ones on demand.
//
// An item is either idle in the pool or checked out by exactly one caller.
// The pool only shrinks through TerminateAll.
type Pool[T any] struct {
	factory   Factory[T]
	terminate func(T)

	mu      sync.Mutex
	idle    []T
	created int
	allocs  int64
	reuses  int64
	closed  bool
}

// Stats is a snapshot of pool counters
type Stats struct {
	Created int   // Factory calls, failed ones included
	Idle    int   // Items currently in the pool
	Allocs  int64 // Successful Alloc calls
	Reuses  int64 // Alloc calls served from the idle set
}

// New creates an empty pool. terminate may be nil when items need no teardown.
func New[T any](factory Factory[T], terminate func(T)) *Pool[T] {
	if terminate == nil {
		terminate = func(T) {}
	}
	return &Pool[T]{
		factory:   factory,
		terminate: terminate,
	}
}

// Alloc returns an idle item, or a new one from the factory when none is idle.
// Factory errors are returned to the caller as-is (wrapped), without retry.
func (p *Pool[T]) Alloc() (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrClosed
	}
	if n := len(p.idle); n > 0 {
		item := p.idle[n-1]
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		p.allocs++
		p.reuses++
		p.mu.Unlock()
		return item, nil
	}
	index := p.created
	p.created++
	p.mu.Unlock()

	item, err := p.factory(index)
	if err != nil {
		return zero, fmt.Errorf("failed to create pool item %d: %w", index, err)
	}

	p.mu.Lock()
	p.allocs++
	p.mu.Unlock()

	return item, nil
}

// Free returns an item to the idle set. After TerminateAll the item is
// terminated instead.
func (p *Pool[T]) Free(item T) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.terminate(item)
		return
	}
	p.idle = append(p.idle, item)
	p.mu.Unlock()
}

// TerminateAll terminates every idle item and closes the pool for allocation.
// Items still checked out are terminated when they are freed.
func (p *Pool[T]) TerminateAll() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, item := range idle {
		p.terminate(item)
	}
}

// ItemsInPool returns the number of idle items
func (p *Pool[T]) ItemsInPool() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Closed reports whether TerminateAll has been called
func (p *Pool[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Stats returns the current pool counters
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Created: p.created,
		Idle:    len(p.idle),
		Allocs:  p.allocs,
		Reuses:  p.reuses,
	}
}
