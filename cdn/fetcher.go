package cdn

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/metrics"
)

const (
	// defaultMaxAttempts bounds the retry loop of a single FetchArtifact
	// call. The forbidden-without-cached-token recovery path is exempt.
	defaultMaxAttempts = 5

	// defaultFetchDeadline is the overall deadline of one FetchArtifact
	// call, enforced by a derived cancellation scope.
	defaultFetchDeadline = 5 * time.Minute

	// authCodeTTL is the expiry of cached request-authorization codes,
	// keyed per (container, artifact).
	authCodeTTL = 5 * time.Minute

	// authCodeCleanupInterval is how often the code cache purges expired
	// entries.
	authCodeCleanupInterval = 10 * time.Minute
)

// fetchBackoffSchedule holds the fixed delays between transient-failure
// retries. Attempts beyond the schedule reuse the last value.
var fetchBackoffSchedule = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	10 * time.Second,
}

// endpointPool is the slice of the Pool surface the fetcher consumes.
type endpointPool interface {
	Acquire(ctx context.Context) (*Endpoint, error)
	Release(endpoint *Endpoint)
	Proxy() *Endpoint
}

// FetcherConfig holds the tunables of the fetch orchestrator. Zero values
// are replaced with defaults.
type FetcherConfig struct {
	// MaxAttempts bounds the retry loop of a single fetch.
	MaxAttempts int

	// Deadline is the overall per-fetch deadline.
	Deadline time.Duration
}

func (c *FetcherConfig) hydrateDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Deadline <= 0 {
		c.Deadline = defaultFetchDeadline
	}
}

// Fetcher drives individual artifact fetches: it acquires an endpoint from
// the pool, runs a bounded retry loop against the content-fetch client, and
// returns the endpoint to the pool on every exit path.
//
// Ordinary fetch failures release the endpoint back to the pool unchanged; a
// failure may be artifact-specific rather than endpoint-specific, so marking
// an endpoint broken is left to callers that detect the endpoint itself is
// unreachable.
type Fetcher struct {
	logger  polylog.Logger
	config  FetcherConfig
	pool    endpointPool
	session SessionProvider
	client  ContentClient

	// authCodes caches request-authorization codes per (container, artifact)
	// with a 5-minute expiry.
	authCodes *cache.Cache

	// sleep waits between transient-failure retries. Overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetch orchestrator on top of the given pool and
// collaborators.
func NewFetcher(
	logger polylog.Logger,
	config FetcherConfig,
	pool endpointPool,
	session SessionProvider,
	client ContentClient,
) *Fetcher {
	config.hydrateDefaults()

	return &Fetcher{
		logger:    logger.With("component", "fetcher"),
		config:    config,
		pool:      pool,
		session:   session,
		client:    client,
		authCodes: cache.New(authCodeTTL, authCodeCleanupInterval),
		sleep:     sleepContext,
	}
}

// FetchArtifact fetches one artifact's bytes.
//
// Retry policy:
//   - transient transport failures are retried up to the attempt bound with
//     fixed backoff (1s, 3s, 10s, clamped to the last value),
//   - a forbidden failure with no cached per-host token refreshes the token,
//     swaps the endpoint, and retries without consuming an attempt,
//   - hard failures (missing decryption key, empty authorization code) and
//     cancellation stop immediately.
//
// The checked-out endpoint is released on every exit path.
func (f *Fetcher) FetchArtifact(
	ctx context.Context,
	containerID ContainerID,
	ownerID OwnerID,
	artifactID ArtifactID,
	variant string,
) ([]byte, error) {
	logger := f.logger.With(
		"container_id", strconv.FormatUint(uint64(containerID), 10),
		"artifact_id", strconv.FormatUint(uint64(artifactID), 10),
	)

	ctx, cancel := context.WithTimeout(ctx, f.config.Deadline)
	defer cancel()

	// A pre-canceled call records zero attempts.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	endpoint, err := f.pool.Acquire(ctx)
	if err != nil {
		metrics.RecordFetch(metrics.FetchNoEndpoint, 0)
		return nil, fmt.Errorf("no endpoint obtainable: %w", err)
	}
	defer func() {
		if endpoint != nil {
			f.pool.Release(endpoint)
		}
	}()

	start := time.Now()
	attempts := 0
	var lastErr error

loop:
	for attempts < f.config.MaxAttempts {
		if err := ctx.Err(); err != nil {
			metrics.RecordFetch(metrics.FetchCanceled, time.Since(start).Seconds())
			return nil, err
		}

		hostToken, hasToken := f.session.GetPerHostToken(containerID, endpoint.Host)

		code, err := f.authorizationCode(ctx, containerID, ownerID, artifactID, variant)
		if err != nil {
			lastErr = err
			break loop
		}

		key, ok := f.session.GetDecryptionKey(containerID)
		if !ok {
			lastErr = fmt.Errorf("%w: container %d", ErrMissingDecryptionKey, containerID)
			break loop
		}

		data, err := f.client.Fetch(ctx, FetchRequest{
			ArtifactID:        artifactID,
			AuthorizationCode: code,
			Endpoint:          endpoint,
			DecryptionKey:     key,
			Proxy:             f.pool.Proxy(),
			HostToken:         hostToken,
		})
		if err == nil {
			metrics.RecordFetch(metrics.FetchSuccess, time.Since(start).Seconds())
			return data, nil
		}

		switch classifyFetchError(err) {
		case fetchErrorCanceled:
			metrics.RecordFetch(metrics.FetchCanceled, time.Since(start).Seconds())
			return nil, err

		case fetchErrorForbidden:
			if !hasToken {
				// A recoverable authorization gap, not server
				// unhealthiness: refresh the per-host token, swap the
				// endpoint, and retry without consuming an attempt.
				logger.Info().Str("host", endpoint.Host).
					Msg("fetch forbidden without a cached host token; refreshing token")

				if tokenErr := f.session.RequestPerHostToken(ctx, ownerID, containerID, endpoint); tokenErr != nil {
					lastErr = tokenErr
					break loop
				}

				f.pool.Release(endpoint)
				endpoint = nil
				if endpoint, err = f.pool.Acquire(ctx); err != nil {
					metrics.RecordFetch(metrics.FetchNoEndpoint, time.Since(start).Seconds())
					return nil, fmt.Errorf("no endpoint obtainable after token refresh: %w", err)
				}
				continue
			}
			fallthrough

		case fetchErrorTransient:
			attempts++
			lastErr = err
			if attempts >= f.config.MaxAttempts {
				break loop
			}

			delay := fetchBackoffSchedule[min(attempts-1, len(fetchBackoffSchedule)-1)]
			logger.Warn().Err(err).
				Int("attempt", attempts).
				Str("backoff", delay.String()).
				Str("host", endpoint.Host).
				Msg("transient fetch failure; backing off before retry")

			if sleepErr := f.sleep(ctx, delay); sleepErr != nil {
				metrics.RecordFetch(metrics.FetchCanceled, time.Since(start).Seconds())
				return nil, sleepErr
			}

		case fetchErrorHard:
			lastErr = err
			break loop
		}
	}

	metrics.RecordFetch(metrics.FetchFailure, time.Since(start).Seconds())
	return nil, fmt.Errorf("fetching artifact %d: %w", artifactID, lastErr)
}

// authorizationCode resolves the request-authorization code for an artifact,
// serving from the per-(container, artifact) cache when possible. A
// zero/empty code after a fresh request is a hard failure.
func (f *Fetcher) authorizationCode(
	ctx context.Context,
	containerID ContainerID,
	ownerID OwnerID,
	artifactID ArtifactID,
	variant string,
) (string, error) {
	cacheKey := authCodeKey(containerID, artifactID)
	if cached, ok := f.authCodes.Get(cacheKey); ok {
		return cached.(string), nil
	}

	code, err := f.session.GetRequestAuthorizationCode(ctx, containerID, ownerID, artifactID, variant)
	if err != nil {
		return "", fmt.Errorf("requesting authorization code: %w", err)
	}
	if code == "" {
		return "", fmt.Errorf("%w: container %d artifact %d", ErrNoAuthorizationCode, containerID, artifactID)
	}

	f.authCodes.Set(cacheKey, code, cache.DefaultExpiration)
	return code, nil
}

func authCodeKey(containerID ContainerID, artifactID ArtifactID) string {
	return fmt.Sprintf("%d:%d", containerID, artifactID)
}
