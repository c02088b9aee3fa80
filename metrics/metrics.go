// metrics package exposes Prometheus metrics for the CDN endpoint pool and
// the fetch orchestrator.
package metrics

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	cdnProcess = "cdn"

	acquisitionsTotal    = "endpoint_acquisitions_total"
	activeCheckouts      = "endpoint_active_checkouts"
	poolAvailable        = "pool_available_endpoints"
	poolExhaustionsTotal = "pool_exhaustions_total"
	penaltiesTotal       = "endpoint_penalties_total"
	fetchesTotal         = "fetches_total"
	fetchDurationSeconds = "fetch_duration_seconds"
)

// Acquisition result label values.
const (
	AcquireReuse     = "reuse"
	AcquireQueue     = "queue"
	AcquireTimeout   = "timeout"
	AcquireExhausted = "exhausted"
)

// Fetch result label values.
const (
	FetchSuccess    = "success"
	FetchFailure    = "failure"
	FetchCanceled   = "canceled"
	FetchNoEndpoint = "no_endpoint"
)

var (
	// endpointAcquisitions counts endpoint checkouts by result. The 'reuse'
	// result is the warm-connection hit path; 'queue' indicates a dequeue
	// from the health-ranked availability queue.
	//
	// Usage:
	// - Monitor the reuse-cache hit rate.
	// - Alert on sustained 'timeout' or 'exhausted' results.
	endpointAcquisitions = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Subsystem: cdnProcess,
		Name:      acquisitionsTotal,
		Help:      "Total number of endpoint acquisitions, labeled by result.",
	}, []string{"result"})

	// endpointActiveCheckouts tracks how many endpoints are currently
	// checked out of the pool, bounded by the concurrency semaphore.
	endpointActiveCheckouts = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Subsystem: cdnProcess,
		Name:      activeCheckouts,
		Help:      "Number of endpoints currently checked out of the pool.",
	}, []string{})

	// poolAvailableEndpoints tracks the available-queue length per
	// container. The replenishment loop keeps it above the configured floor.
	poolAvailableEndpoints = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Subsystem: cdnProcess,
		Name:      poolAvailable,
		Help:      "Number of endpoints in the available queue, labeled by container.",
	}, []string{"container"})

	// poolExhaustions counts exhaustion signals. A pool signals exhaustion
	// at most once in its lifetime, so this effectively counts dead pools.
	poolExhaustions = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Subsystem: cdnProcess,
		Name:      poolExhaustionsTotal,
		Help:      "Total number of pool exhaustion signals, labeled by container.",
	}, []string{"container"})

	// endpointPenalties counts recorded endpoint failures. Each recorded
	// failure raises the host's persisted penalty.
	endpointPenalties = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Subsystem: cdnProcess,
		Name:      penaltiesTotal,
		Help:      "Total number of endpoint failures recorded by the penalty tracker.",
	}, []string{})

	// fetches counts FetchArtifact outcomes by result.
	fetches = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Subsystem: cdnProcess,
		Name:      fetchesTotal,
		Help:      "Total number of artifact fetches, labeled by result.",
	}, []string{"result"})

	// fetchDuration observes end-to-end FetchArtifact durations, including
	// retries and backoff delays.
	//
	// Buckets:
	// - 0.1s to 60s, capturing single-attempt fetches through multi-retry
	//   sequences with 10s backoffs.
	fetchDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Subsystem: cdnProcess,
		Name:      fetchDurationSeconds,
		Help:      "Histogram of artifact fetch durations for performance analysis.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 15, 30, 60},
	}, []string{"result"})
)

// RecordAcquisition increments the acquisition counter for one result.
func RecordAcquisition(result string) {
	endpointAcquisitions.With("result", result).Add(1)
}

// SetActiveCheckouts refreshes the checked-out endpoint gauge.
func SetActiveCheckouts(n int64) {
	endpointActiveCheckouts.Set(float64(n))
}

// SetPoolAvailable refreshes the available-queue gauge for one container.
func SetPoolAvailable(container string, n float64) {
	poolAvailableEndpoints.With("container", container).Set(n)
}

// RecordExhaustion counts one pool exhaustion signal.
func RecordExhaustion(container string) {
	poolExhaustions.With("container", container).Add(1)
}

// RecordPenalty counts one recorded endpoint failure.
func RecordPenalty() {
	endpointPenalties.Add(1)
}

// RecordFetch counts one fetch outcome and observes its duration.
func RecordFetch(result string, seconds float64) {
	fetches.With("result", result).Add(1)
	fetchDuration.With("result", result).Observe(seconds)
}
