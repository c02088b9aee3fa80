package cdn

import (
	"context"
	"sync"

	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/metrics"
)

// checkoutLimiter bounds how many endpoints may be checked out of the pool
// simultaneously via a semaphore pattern. A caller must hold a permit before
// dequeuing an endpoint; the permit is released when the endpoint is returned
// or marked broken.
type checkoutLimiter struct {
	semaphore       chan struct{}
	maxConcurrent   int
	activeCheckouts int64
	mu              sync.RWMutex
}

// newCheckoutLimiter creates a limiter that bounds concurrent checkouts.
func newCheckoutLimiter(maxConcurrent int) *checkoutLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	return &checkoutLimiter{
		semaphore:     make(chan struct{}, maxConcurrent),
		maxConcurrent: maxConcurrent,
	}
}

// acquire blocks until a permit is available or the context is canceled.
// Returns true if acquired, false if the context was canceled.
func (cl *checkoutLimiter) acquire(ctx context.Context) bool {
	select {
	case cl.semaphore <- struct{}{}:
		cl.mu.Lock()
		cl.activeCheckouts++
		// Track checked-out endpoints for observability
		metrics.SetActiveCheckouts(cl.activeCheckouts)
		cl.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	}
}

// release returns a permit to the limiter.
func (cl *checkoutLimiter) release() {
	select {
	case <-cl.semaphore:
		cl.mu.Lock()
		cl.activeCheckouts--
		metrics.SetActiveCheckouts(cl.activeCheckouts)
		cl.mu.Unlock()
	default:
		// acquire/release mismatch; tolerated to keep release idempotent
		// on pool shutdown paths.
	}
}

// getActiveCheckouts returns the current number of checked-out endpoints.
func (cl *checkoutLimiter) getActiveCheckouts() int64 {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.activeCheckouts
}
