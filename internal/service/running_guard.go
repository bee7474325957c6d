package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard is an exported alias so _test packages can test the guard.
type ExportedRunningGuard = runningJobsGuard

// ─────────────────────────────────────────────────────────────
// runningJobsGuard — prevents concurrent pipelines on one block
// ─────────────────────────────────────────────────────────────

// runningJobsGuard ensures only one pipeline runs per block ID at a time.
// Pipelines on different blocks run freely in parallel.
type runningJobsGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock attempts to mark blockID as running. Returns true if successful.
// Returns false if a pipeline for the block is already in flight.
func (g *runningJobsGuard) TryLock(blockID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[blockID]; ok {
		return false // already running
	}
	g.running[blockID] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock marks the block as no longer running. Must be called after TryLock returns true.
func (g *runningJobsGuard) Unlock(blockID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, blockID)
	g.wg.Done()
}

// WaitAll blocks until all in-flight pipelines complete or ctx is cancelled.
func (g *runningJobsGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
