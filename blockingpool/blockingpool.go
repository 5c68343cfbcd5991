package blockingpool

import "context"

// BlockingPool is a generic, channel-based object pool that provides blocking
// semantics for both acquiring and returning objects.
//
// The pool has a fixed capacity, specified at creation time. It is for
// scenarios where you want to limit the number of concurrently allocated
// resources and enforce strict back-pressure:
//
//   - Get() blocks until an object is available in the pool. GetContext()
//     additionally gives up when the caller's context is canceled.
//   - Put() blocks until there is space in the pool (i.e., the number of
//     outstanding objects is below the capacity).
//
// A BlockingPool may be copied; copies share the same underlying objects.
type BlockingPool[T any] struct {
	pool chan T
}

// NewBlockingPool creates a new BlockingPool with the specified capacity.
//
// The capacity determines the maximum number of objects that can be "checked
// out" simultaneously (i.e., the maximum number of outstanding Get() calls
// without corresponding Put() calls).
func NewBlockingPool[T any](capacity int) BlockingPool[T] {
	return BlockingPool[T]{pool: make(chan T, capacity)}
}

// Get acquires an object from the pool, blocking until one is available.
//
// It is the caller's responsibility to eventually call .Put() with the
// returned object (or a replacement) to release it back to the pool.
func (p *BlockingPool[T]) Get() T { return <-p.pool }

// GetContext acquires an object like Get, but returns ctx.Err() if ctx is
// canceled first.
func (p *BlockingPool[T]) GetContext(ctx context.Context) (T, error) {
	select {
	case obj := <-p.pool:
		return obj, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Put returns an object to the pool, blocking until there is space available.
func (p *BlockingPool[T]) Put(obj T) { p.pool <- obj }

// Available returns the number of objects currently waiting in the pool.
func (p *BlockingPool[T]) Available() int { return len(p.pool) }

// Capacity returns the pool size given to NewBlockingPool.
func (p *BlockingPool[T]) Capacity() int { return cap(p.pool) }
