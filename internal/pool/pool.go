// Package pool bounds concurrent engine calls and background audit writes.
package pool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Defaults used when the configured sizes are not positive.
const (
	DefaultWorkers = 8
	DefaultBacklog = 256
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("pool closed")

// Pool runs work on a fixed number of slots. Synchronous work (Do) waits for a slot;
// background work (Go) is queued up to the backlog size and dropped beyond it.
type Pool struct {
	slots   *semaphore.Weighted
	backlog *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a pool with the given number of slots and background backlog.
func New(workers, backlog int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Pool{
		slots:   semaphore.NewWeighted(int64(workers)),
		backlog: semaphore.NewWeighted(int64(backlog)),
	}
}

// Do runs fn on a slot and returns its error. Waiting for a slot stops when ctx is done.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()
	defer p.wg.Done()

	if err := p.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.slots.Release(1)
	return fn(ctx)
}

// Go queues fn to run in the background. It reports false when the pool is closed or the
// backlog is full; fn is not run in that case.
func (p *Pool) Go(fn func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || !p.backlog.TryAcquire(1) {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.backlog.Release(1)
		// Background work never gives up on a slot; Close waits for it.
		_ = p.slots.Acquire(context.Background(), 1)
		defer p.slots.Release(1)
		fn()
	}()
	return true
}

// Close stops accepting work and waits for running and queued work to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
