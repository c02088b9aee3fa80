package cdn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"
)

const (
	// penaltyIncrement is added to a host's persisted penalty on every
	// recorded failure.
	penaltyIncrement = 1000

	// recentFailurePenalty is the temporary penalty applied immediately
	// after a failure. It decays linearly to zero over recentFailureWindow.
	recentFailurePenalty = 5000

	// recentFailureWindow is how long a recorded failure keeps contributing
	// a decayed temporary penalty to the host's effective weight.
	recentFailureWindow = 5 * time.Minute
)

// penaltyRecord holds the failure history of a single host.
// Fields are updated atomically so concurrent workers reporting failures for
// the same host never contend on a broad lock.
type penaltyRecord struct {
	// persisted is the monotonically increasing penalty, written through to
	// the durable store on every update.
	persisted atomic.Int64

	// lastFailureNano is the unix-nano timestamp of the most recent failure,
	// zero if the host never failed in this process run.
	lastFailureNano atomic.Int64
}

// PenaltyTracker scores hosts based on past fetch failures. The persisted
// component survives process restarts through the PenaltyStore; the
// recent-failure component is in-memory and decays over a fixed window.
//
// Records are created lazily on first failure or first lookup and are never
// deleted within a process run.
type PenaltyTracker struct {
	logger polylog.Logger
	store  PenaltyStore

	// now is the clock used for decay computation. Overridable in tests.
	now func() time.Time

	mu      sync.RWMutex
	records map[string]*penaltyRecord
}

// NewPenaltyTracker creates a tracker backed by the given durable store.
func NewPenaltyTracker(logger polylog.Logger, store PenaltyStore) *PenaltyTracker {
	return &PenaltyTracker{
		logger:  logger.With("component", "penalty_tracker"),
		store:   store,
		now:     time.Now,
		records: make(map[string]*penaltyRecord),
	}
}

// RecordFailure increments the host's persisted penalty and stamps the
// current time as its last failure. The new penalty is written through to
// the durable store immediately; a store write failure is logged and
// skipped, since loss of persistence is non-fatal.
func (pt *PenaltyTracker) RecordFailure(ctx context.Context, host string) {
	record := pt.record(ctx, host)

	penalty := record.persisted.Add(penaltyIncrement)
	record.lastFailureNano.Store(pt.now().UnixNano())

	if err := pt.store.Set(ctx, host, penalty); err != nil {
		pt.logger.Warn().Err(err).
			Str("host", host).
			Msg("failed to persist endpoint penalty; continuing without persistence")
	}
}

// EffectiveWeight returns the host's selection weight:
//
//	declaredLoad + persistedPenalty + decayedRecentFailurePenalty
//
// Lower is preferred. The decayed component is
// max(0, 5000 * (1 - secondsSinceFailure/300)) while the last failure is
// inside the 5-minute window, and zero outside it.
func (pt *PenaltyTracker) EffectiveWeight(ctx context.Context, host string, declaredLoad int) int64 {
	record := pt.record(ctx, host)
	return int64(declaredLoad) + record.persisted.Load() + pt.decayedPenalty(record)
}

// HasRecentFailure reports whether the host failed within the decay window.
// Used by the pool to halve a host's slot multiplicity during population.
func (pt *PenaltyTracker) HasRecentFailure(host string) bool {
	pt.mu.RLock()
	record, ok := pt.records[host]
	pt.mu.RUnlock()
	if !ok {
		return false
	}

	lastFailure := record.lastFailureNano.Load()
	if lastFailure == 0 {
		return false
	}
	return pt.now().Sub(time.Unix(0, lastFailure)) < recentFailureWindow
}

// decayedPenalty computes the in-memory, time-decayed penalty component.
func (pt *PenaltyTracker) decayedPenalty(record *penaltyRecord) int64 {
	lastFailure := record.lastFailureNano.Load()
	if lastFailure == 0 {
		return 0
	}

	elapsed := pt.now().Sub(time.Unix(0, lastFailure))
	if elapsed >= recentFailureWindow {
		return 0
	}

	remaining := 1 - elapsed.Seconds()/recentFailureWindow.Seconds()
	return int64(recentFailurePenalty * remaining)
}

// record returns the host's penalty record, creating it lazily. On first
// creation the persisted penalty is seeded from the durable store; a store
// read failure is logged and the host starts from zero.
func (pt *PenaltyTracker) record(ctx context.Context, host string) *penaltyRecord {
	pt.mu.RLock()
	record, ok := pt.records[host]
	pt.mu.RUnlock()
	if ok {
		return record
	}

	persisted, err := pt.store.Get(ctx, host)
	if err != nil {
		pt.logger.Warn().Err(err).
			Str("host", host).
			Msg("failed to load persisted endpoint penalty; starting from zero")
		persisted = 0
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	// Another worker may have created the record while the store read was in
	// flight.
	if record, ok = pt.records[host]; ok {
		return record
	}

	record = &penaltyRecord{}
	record.persisted.Store(persisted)
	pt.records[host] = record
	return record
}
