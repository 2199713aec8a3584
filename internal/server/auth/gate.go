package auth

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of concurrent password-hashing operations. Argon2 is
// deliberately CPU- and memory-expensive, so a login burst must not be allowed
// to run an unbounded number of hashes in parallel. Callers acquire a slot
// before hashing and release it afterwards; excess requests queue on the
// semaphore and respect context cancellation while waiting.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate returns a gate admitting at most size concurrent operations.
// A size <= 0 falls back to GOMAXPROCS.
func NewGate(size int) *Gate {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Gate{sem: semaphore.NewWeighted(int64(size))}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release frees a slot acquired with Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}
