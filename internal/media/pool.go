package media

import (
	"context"
	"runtime"
)

// Pool bounds concurrent encodes so parallel scene rendering cannot
// oversubscribe the host.
type Pool struct {
	slots chan struct{}
}

// NewPool creates a pool with the given number of slots; size 0 or less uses
// the CPU count.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or the context ends.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired earlier.
func (p *Pool) Release() {
	<-p.slots
}

// Size returns the slot count.
func (p *Pool) Size() int {
	return cap(p.slots)
}
