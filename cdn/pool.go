package cdn

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/health"
	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/metrics"
)

var _ health.Check = &Pool{}

const (
	// defaultPoolFloor is the minimum number of queued endpoints the
	// replenishment loop tries to maintain.
	defaultPoolFloor = 20

	// defaultMaxConcurrent bounds simultaneously checked-out endpoints.
	defaultMaxConcurrent = 4

	// defaultAcquireTimeout bounds a single blocking Acquire call.
	defaultAcquireTimeout = 30 * time.Second

	// defaultAcquireRetries bounds empty-queue retry rounds inside Acquire.
	defaultAcquireRetries = 3

	// defaultQueueCapacity is the buffered capacity of the available queue.
	defaultQueueCapacity = 256

	// defaultReplenishInterval is how long the replenishment loop waits for
	// an explicit low-pool signal before waking on its own.
	defaultReplenishInterval = 5 * time.Second

	// defaultListBackoffInitial and defaultListBackoffMax bound the delay
	// applied after failed or empty directory listings. The delay doubles
	// after the first failure.
	defaultListBackoffInitial = 5 * time.Second
	defaultListBackoffMax     = 30 * time.Second

	// acquireRetryBackoffInitial is the first empty-queue retry delay inside
	// Acquire. Doubles per round, with jitter.
	acquireRetryBackoffInitial = 5 * time.Second

	// enqueueTimeout bounds a single insert into the available queue so the
	// replenishment loop never blocks indefinitely on a full queue.
	enqueueTimeout = 100 * time.Millisecond

	// shutdownTimeout is how long Shutdown waits for the replenishment loop
	// to stop.
	shutdownTimeout = 5 * time.Second

	// iterationErrorDelay follows any unexpected replenishment-loop error to
	// prevent a tight error loop.
	iterationErrorDelay = 5 * time.Second
)

// PoolConfig holds the tunables of an endpoint pool. Zero values are
// replaced with defaults.
type PoolConfig struct {
	// Floor is the available-endpoint supply the replenishment loop
	// maintains.
	Floor int

	// MaxConcurrent bounds simultaneously checked-out endpoints.
	MaxConcurrent int

	// AcquireTimeout bounds a single blocking Acquire call.
	AcquireTimeout time.Duration

	// AcquireRetries bounds empty-queue retry rounds inside Acquire.
	AcquireRetries int

	// QueueCapacity is the buffered capacity of the available queue.
	QueueCapacity int

	// ReplenishInterval is the replenishment loop's timer wakeup period.
	ReplenishInterval time.Duration

	// ListBackoffInitial and ListBackoffMax bound the delay after failed or
	// empty directory listings.
	ListBackoffInitial time.Duration
	ListBackoffMax     time.Duration
}

// hydrateDefaults assigns default values to zero-valued fields.
func (c *PoolConfig) hydrateDefaults() {
	if c.Floor <= 0 {
		c.Floor = defaultPoolFloor
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = defaultAcquireTimeout
	}
	if c.AcquireRetries <= 0 {
		c.AcquireRetries = defaultAcquireRetries
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if c.ReplenishInterval <= 0 {
		c.ReplenishInterval = defaultReplenishInterval
	}
	if c.ListBackoffInitial <= 0 {
		c.ListBackoffInitial = defaultListBackoffInitial
	}
	if c.ListBackoffMax <= 0 {
		c.ListBackoffMax = defaultListBackoffMax
	}
}

// Pool owns the set of currently usable endpoints for one container context.
//
// It maintains:
//   - an available queue of health-ranked endpoints, repopulated by a single
//     background replenishment goroutine,
//   - a LIFO reuse cache of endpoints recently released by successful
//     fetches, checked before the queue on every Acquire,
//   - a semaphore bounding simultaneously checked-out endpoints,
//   - a pool-owned exhaustion signal observed by external orchestration.
//
// Multiple independent pools (one per container context) may coexist in the
// same process; no package-level state is shared between them.
type Pool struct {
	logger polylog.Logger
	config PoolConfig

	containerID    ContainerID
	containerLabel string

	directory DirectoryClient
	session   SessionProvider
	penalties *PenaltyTracker

	available chan *Endpoint

	reuseMu sync.Mutex
	reuse   []*Endpoint

	limiter *checkoutLimiter

	// replenishSignal wakes the replenishment loop early. Buffered with
	// capacity 1 so signaling never blocks.
	replenishSignal chan struct{}

	// exhausted is closed exactly once when the pool can no longer produce
	// endpoints. Distinct from per-fetch cancellation.
	exhausted   chan struct{}
	exhaustOnce sync.Once

	proxyMu sync.RWMutex
	proxy   *Endpoint

	populatedOnce atomic.Bool
	listFailures  int

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	loopCancel   context.CancelFunc
	loopDone     chan struct{}
}

// NewPool creates a pool for the given container context and starts its
// background replenishment loop.
func NewPool(
	logger polylog.Logger,
	config PoolConfig,
	containerID ContainerID,
	directory DirectoryClient,
	session SessionProvider,
	penalties *PenaltyTracker,
) *Pool {
	p := newPool(logger, config, containerID, directory, session, penalties)

	loopCtx, loopCancel := context.WithCancel(context.Background())
	p.loopCancel = loopCancel
	go p.replenishLoop(loopCtx)
	p.signalReplenish()

	return p
}

// newPool builds a pool without starting its replenishment loop.
func newPool(
	logger polylog.Logger,
	config PoolConfig,
	containerID ContainerID,
	directory DirectoryClient,
	session SessionProvider,
	penalties *PenaltyTracker,
) *Pool {
	config.hydrateDefaults()

	return &Pool{
		logger: logger.With(
			"component", "endpoint_pool",
			"container_id", strconv.FormatUint(uint64(containerID), 10),
		),
		config:          config,
		containerID:     containerID,
		containerLabel:  strconv.FormatUint(uint64(containerID), 10),
		directory:       directory,
		session:         session,
		penalties:       penalties,
		available:       make(chan *Endpoint, config.QueueCapacity),
		limiter:         newCheckoutLimiter(config.MaxConcurrent),
		replenishSignal: make(chan struct{}, 1),
		exhausted:       make(chan struct{}),
		shutdownCh:      make(chan struct{}),
		loopCancel:      func() {},
		loopDone:        make(chan struct{}),
	}
}

// Acquire checks out an endpoint for a fetch.
//
// The caller must hold a concurrency permit before dequeuing, so Acquire
// first blocks on the semaphore, bounded by the caller's context and the
// pool's acquisition timeout. The reuse cache is then checked with a
// non-blocking pop; only when it is empty does Acquire fall through to a
// blocking dequeue from the available queue, retrying a bounded number of
// empty-queue rounds with exponential backoff and jitter.
//
// The permit is released when the endpoint is passed to Release or
// MarkBroken, or on every Acquire failure path.
func (p *Pool) Acquire(ctx context.Context) (*Endpoint, error) {
	select {
	case <-p.shutdownCh:
		return nil, ErrPoolShutdown
	default:
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()

	if !p.limiter.acquire(acquireCtx) {
		metrics.RecordAcquisition(metrics.AcquireTimeout)
		return nil, acquireFailure(ctx)
	}

	// Hit path: the most-recently-released endpoint is handed out first,
	// bypassing the queue entirely.
	if endpoint := p.popReuse(); endpoint != nil {
		metrics.RecordAcquisition(metrics.AcquireReuse)
		return endpoint, nil
	}

	backoff := acquireRetryBackoffInitial
	for retry := 0; ; retry++ {
		select {
		case endpoint := <-p.available:
			p.updateAvailableGauge()
			metrics.RecordAcquisition(metrics.AcquireQueue)
			return endpoint, nil

		case <-p.exhausted:
			p.limiter.release()
			metrics.RecordAcquisition(metrics.AcquireExhausted)
			return nil, ErrPoolExhausted

		case <-p.shutdownCh:
			p.limiter.release()
			return nil, ErrPoolShutdown

		case <-acquireCtx.Done():
			p.limiter.release()
			metrics.RecordAcquisition(metrics.AcquireTimeout)
			return nil, acquireFailure(ctx)

		case <-time.After(withJitter(backoff)):
			if retry+1 >= p.config.AcquireRetries {
				p.limiter.release()
				metrics.RecordAcquisition(metrics.AcquireTimeout)
				return nil, ErrAcquireTimeout
			}
			// Queue still empty: nudge the replenisher and wait longer.
			p.signalReplenish()
			backoff *= 2
		}
	}
}

// Release returns a successfully used endpoint to the pool. The endpoint is
// pushed onto the reuse cache (LIFO) for fast reacquisition by a subsequent
// caller, bypassing the availability queue entirely.
func (p *Pool) Release(endpoint *Endpoint) {
	if endpoint == nil {
		return
	}

	p.reuseMu.Lock()
	p.reuse = append(p.reuse, endpoint)
	p.reuseMu.Unlock()

	p.limiter.release()
}

// MarkBroken reports that the endpoint itself, not the artifact, is
// unreachable. It records a penalty failure for the host and signals the
// replenishment loop to top up the pool sooner. The endpoint does not
// re-enter the pool.
func (p *Pool) MarkBroken(ctx context.Context, endpoint *Endpoint) {
	if endpoint == nil {
		return
	}

	p.penalties.RecordFailure(ctx, endpoint.Host)
	metrics.RecordPenalty()
	p.signalReplenish()
	p.limiter.release()
}

// Shutdown stops the background replenishment loop, waiting up to 5s for it
// to exit. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdownCh)
		p.loopCancel()

		select {
		case <-p.loopDone:
		case <-time.After(shutdownTimeout):
			p.logger.Warn().Msg("replenishment loop did not stop within the shutdown timeout")
		}
	})
}

// Exhausted returns the pool-owned exhaustion signal. It is closed when no
// endpoints are or will be available; external orchestration layers observe
// it to abort higher-level work.
func (p *Pool) Exhausted() <-chan struct{} {
	return p.exhausted
}

// Proxy returns the designated proxy-capable endpoint from the current pool
// population, or nil if none was selected.
func (p *Pool) Proxy() *Endpoint {
	p.proxyMu.RLock()
	defer p.proxyMu.RUnlock()
	return p.proxy
}

// Available returns the current length of the available queue.
func (p *Pool) Available() int {
	return len(p.available)
}

// Name satisfies the health.Check interface.
func (p *Pool) Name() string {
	return "endpoint-pool"
}

// IsAlive satisfies the health.Check interface: the pool is healthy until it
// signals exhaustion.
func (p *Pool) IsAlive() bool {
	select {
	case <-p.exhausted:
		return false
	default:
		return true
	}
}

/* --------------------------------- Background replenishment -------------------------------- */

// replenishLoop keeps the available-endpoint supply above the configured
// floor. It runs on its own schedule, independent of callers, and exits on
// pool shutdown or exhaustion.
func (p *Pool) replenishLoop(ctx context.Context) {
	defer close(p.loopDone)

	for {
		woken := false
		select {
		case <-ctx.Done():
			return
		case <-p.replenishSignal:
			woken = true
		case <-time.After(p.config.ReplenishInterval):
		}

		stop, err := p.replenishOnce(ctx, woken)
		if err != nil {
			p.logger.Error().Err(err).
				Msg("unexpected error replenishing endpoint pool; delaying next iteration")
			if sleepContext(ctx, iterationErrorDelay) != nil {
				return
			}
		}
		if stop {
			return
		}
	}
}

// replenishOnce runs a single replenishment iteration. It returns stop=true
// when the loop should exit (shutdown handled by the caller, exhaustion
// handled here).
func (p *Pool) replenishOnce(ctx context.Context, woken bool) (bool, error) {
	available := len(p.available)
	connected := p.session.IsConnected()

	// Timer-only wakeup with a visibly low pool: raise the explicit signal
	// and let the next iteration do the actual work. Debounces spurious
	// timer wakeups.
	if !woken && available < p.config.Floor/2 && connected {
		p.signalReplenish()
		return false, nil
	}

	if available < p.config.Floor && connected {
		if stop := p.populate(ctx); stop {
			return true, nil
		}
	}

	if len(p.available) == 0 && !p.session.IsConnected() && p.populatedOnce.Load() {
		p.logger.Warn().Msg("session disconnected with an empty working set; signaling pool exhaustion")
		p.signalExhaustion()
		return true, nil
	}

	return false, nil
}

// scoredEndpoint pairs an endpoint with its effective selection weight.
type scoredEndpoint struct {
	endpoint *Endpoint
	weight   int64
}

// populate fetches a fresh directory listing and rebuilds the available
// queue from it. Returns stop=true when the pool has signaled exhaustion.
func (p *Pool) populate(ctx context.Context) bool {
	endpoints, err := p.directory.ListEndpoints(ctx)
	if err != nil || len(endpoints) == 0 {
		p.listFailures++
		if err != nil {
			p.logger.Warn().Err(err).Msg("directory listing failed")
		} else {
			p.logger.Warn().Msg("directory returned no endpoints")
		}

		if sleepContext(ctx, p.listBackoff()) != nil {
			return true
		}

		if len(p.available) == 0 {
			p.logger.Warn().Msg("no endpoints available after directory outage; signaling pool exhaustion")
			p.signalExhaustion()
			return true
		}
		return false
	}
	p.listFailures = 0

	// Designate a proxy endpoint if the listing carries one.
	for _, endpoint := range endpoints {
		if endpoint.UseAsProxy {
			p.setProxy(endpoint)
			break
		}
	}

	// Keep only endpoints eligible for this container with a whitelisted
	// classification, ranked ascending by effective weight. The stable sort
	// breaks ties by input order.
	scored := make([]scoredEndpoint, 0, len(endpoints))
	for _, endpoint := range endpoints {
		if !endpoint.AllowsContainer(p.containerID) {
			continue
		}
		if !endpoint.ClassificationAllowed() {
			continue
		}
		scored = append(scored, scoredEndpoint{
			endpoint: endpoint,
			weight:   p.penalties.EffectiveWeight(ctx, endpoint.Host, endpoint.DeclaredLoad),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].weight < scored[j].weight
	})

	// Refresh the working set only when it has dropped well below the floor,
	// to avoid discarding still-useful entries on a partial refresh.
	if len(p.available) < p.config.Floor/4 {
		p.clearQueue()
	}

	inserted := 0
	for _, se := range scored {
		for i := 0; i < p.multiplicity(se.endpoint); i++ {
			if !p.enqueue(se.endpoint) {
				break
			}
			inserted++
		}
	}

	p.populatedOnce.Store(true)
	p.updateAvailableGauge()

	p.logger.Info().
		Int("listed", len(endpoints)).
		Int("eligible", len(scored)).
		Int("inserted", inserted).
		Int("available", len(p.available)).
		Msg("replenished endpoint pool")

	return false
}

// multiplicity returns how many queue slots the endpoint occupies:
// max(1, capacity weight), halved (floored at 1) when the host has a
// recent-failure record.
func (p *Pool) multiplicity(endpoint *Endpoint) int {
	multiplicity := endpoint.CapacityWeight
	if multiplicity < 1 {
		multiplicity = 1
	}
	if p.penalties.HasRecentFailure(endpoint.Host) {
		multiplicity /= 2
		if multiplicity < 1 {
			multiplicity = 1
		}
	}
	return multiplicity
}

// listBackoff returns the delay after the current run of consecutive failed
// directory listings: 5s after the first failure, doubling up to 30s.
func (p *Pool) listBackoff() time.Duration {
	backoff := p.config.ListBackoffInitial
	for i := 1; i < p.listFailures; i++ {
		backoff *= 2
		if backoff >= p.config.ListBackoffMax {
			return p.config.ListBackoffMax
		}
	}
	return backoff
}

// enqueue inserts one endpoint into the available queue with a short
// timeout so the replenishment loop never blocks on a momentarily full
// queue.
func (p *Pool) enqueue(endpoint *Endpoint) bool {
	select {
	case p.available <- endpoint:
		return true
	case <-time.After(enqueueTimeout):
		p.logger.Warn().Str("host", endpoint.Host).Msg("available queue full; dropping insert")
		return false
	}
}

// clearQueue drains the available queue.
func (p *Pool) clearQueue() {
	for {
		select {
		case <-p.available:
		default:
			return
		}
	}
}

func (p *Pool) popReuse() *Endpoint {
	p.reuseMu.Lock()
	defer p.reuseMu.Unlock()

	if len(p.reuse) == 0 {
		return nil
	}
	endpoint := p.reuse[len(p.reuse)-1]
	p.reuse = p.reuse[:len(p.reuse)-1]
	return endpoint
}

func (p *Pool) setProxy(endpoint *Endpoint) {
	p.proxyMu.Lock()
	p.proxy = endpoint
	p.proxyMu.Unlock()
}

func (p *Pool) signalReplenish() {
	select {
	case p.replenishSignal <- struct{}{}:
	default:
	}
}

func (p *Pool) signalExhaustion() {
	p.exhaustOnce.Do(func() {
		close(p.exhausted)
		metrics.RecordExhaustion(p.containerLabel)
	})
}

func (p *Pool) updateAvailableGauge() {
	metrics.SetPoolAvailable(p.containerLabel, float64(len(p.available)))
}

// acquireFailure distinguishes a caller-driven cancellation from the pool's
// own acquisition timeout.
func acquireFailure(callerCtx context.Context) error {
	if err := callerCtx.Err(); err != nil {
		return err
	}
	return ErrAcquireTimeout
}

// withJitter spreads a delay over [0.75d, 1.25d) so concurrent callers do
// not wake in lockstep.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d - d/4 + time.Duration(rand.Int63n(int64(d/2)))
}

// sleepContext waits for the given duration or until the context is done,
// returning the context error in the latter case.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
