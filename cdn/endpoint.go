// cdn package implements the CDN endpoint pool and the resilient
// content-fetch orchestrator used to download binary artifacts (manifests)
// from a content delivery network. It covers:
// a) sourcing candidate endpoints from a directory service,
// b) scoring endpoints based on past failures (persisted across runs),
// c) pooling endpoints with a reuse cache and background replenishment,
// d) driving individual fetch attempts with bounded retries and backoff.
package cdn

// ContainerID is the unique identifier of the logical grouping an artifact
// belongs to (a depot/app in the source system).
type ContainerID uint32

// ArtifactID is the unique identifier of a binary content object (manifest).
type ArtifactID uint64

// OwnerID identifies the account on whose behalf artifacts are fetched.
type OwnerID uint64

// ServerClassification is the directory-declared type of a content server.
// Only whitelisted classifications are eligible for pool membership.
type ServerClassification string

const (
	ClassificationEdgeCache ServerClassification = "edge-cache"
	ClassificationCDN       ServerClassification = "cdn"
)

// allowedClassifications is the whitelist of server classifications that may
// enter the pool's working set. Anything else is excluded during population.
var allowedClassifications = map[ServerClassification]struct{}{
	ClassificationEdgeCache: {},
	ClassificationCDN:       {},
}

// Endpoint is a candidate network host capable of serving content.
//
// Endpoints are created when the directory client returns a batch and are
// never mutated afterwards. An endpoint becomes unreachable for selection
// when the pool purges its working set, but its penalty history (keyed by
// Host) persists independently and outlives any single Endpoint instance.
type Endpoint struct {
	// Host uniquely identifies the endpoint and keys its penalty history.
	Host string

	// CapacityWeight biases how many pool slots the endpoint occupies.
	CapacityWeight int

	// DeclaredLoad is the directory-reported load score. Lower is preferred.
	DeclaredLoad int

	// AllowedContainers restricts which containers the endpoint may serve.
	// Empty means unrestricted.
	AllowedContainers []ContainerID

	// UseAsProxy flags the endpoint as proxy-capable. At most one proxy
	// endpoint is designated per pool population.
	UseAsProxy bool

	// Classification is the directory-declared server type.
	Classification ServerClassification
}

// AllowsContainer reports whether the endpoint's eligibility scope includes
// the given container. An empty scope is unrestricted.
func (e *Endpoint) AllowsContainer(containerID ContainerID) bool {
	if len(e.AllowedContainers) == 0 {
		return true
	}
	for _, allowed := range e.AllowedContainers {
		if allowed == containerID {
			return true
		}
	}
	return false
}

// ClassificationAllowed reports whether the endpoint's server classification
// is whitelisted for pool membership.
func (e *Endpoint) ClassificationAllowed() bool {
	_, ok := allowedClassifications[e.Classification]
	return ok
}
