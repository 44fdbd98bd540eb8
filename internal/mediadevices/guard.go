package mediadevices

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ringneck/libwebphone/internal/errors"
)

// Guard serializes every operation that changes device activity or
// preference, or that issues a capture or sink request. Waiters are served
// in FIFO order.
type Guard struct {
	sem     *semaphore.Weighted
	observe func(wait time.Duration)
}

// NewGuard returns an unlocked guard. observe, if set, receives how long each acquisition waited.
func NewGuard(observe func(time.Duration)) *Guard {
	return &Guard{
		sem:     semaphore.NewWeighted(1),
		observe: observe,
	}
}

// Acquire blocks until the guard is free or ctx is done. The returned
// release function is safe to call more than once.
func (g *Guard) Acquire(ctx context.Context) (release func(), err error) {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryCancellation).
			Context("operation", "guard_acquire").
			Build()
	}
	if g.observe != nil {
		g.observe(time.Since(start))
	}
	var once sync.Once
	return func() { once.Do(func() { g.sem.Release(1) }) }, nil
}

// Do runs fn while holding the guard and releases it on every exit path, panics included.
func (g *Guard) Do(ctx context.Context, fn func() error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
