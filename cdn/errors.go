package cdn

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrFetchForbidden indicates the content server denied access to the
	// artifact. Content clients must wrap their access-denied failures with
	// this sentinel so the fetcher can attempt token recovery.
	ErrFetchForbidden = errors.New("content server denied access")

	// ErrMissingDecryptionKey indicates the session holds no decryption key
	// for the artifact's container. Never retried.
	ErrMissingDecryptionKey = errors.New("no decryption key for container")

	// ErrNoAuthorizationCode indicates the session returned a zero/empty
	// request-authorization code for the artifact. Never retried.
	ErrNoAuthorizationCode = errors.New("empty request authorization code")

	// ErrAcquireTimeout indicates no endpoint could be dequeued within the
	// pool's acquisition timeout.
	ErrAcquireTimeout = errors.New("timed out waiting for an available endpoint")

	// ErrPoolExhausted indicates the pool can no longer produce endpoints:
	// the working set is empty and replenishment has stopped.
	ErrPoolExhausted = errors.New("endpoint pool exhausted")

	// ErrPoolShutdown indicates the pool has been shut down.
	ErrPoolShutdown = errors.New("endpoint pool is shut down")
)

// fetchErrorClass buckets a fetch-attempt failure for the retry loop.
type fetchErrorClass int

const (
	// fetchErrorTransient covers timeouts and generic transport failures.
	// Retried up to the attempt bound with backoff.
	fetchErrorTransient fetchErrorClass = iota

	// fetchErrorForbidden covers access-denied failures. Recoverable by
	// refreshing the per-host token when none is cached yet.
	fetchErrorForbidden

	// fetchErrorHard covers configuration failures (missing key, empty
	// authorization code). Never retried.
	fetchErrorHard

	// fetchErrorCanceled covers context cancellation and deadline expiry.
	// Never retried, never counted against the attempt budget.
	fetchErrorCanceled
)

// classifyFetchError maps an error returned by a content-fetch attempt to a
// fetchErrorClass.
//
// - Primary: error comparison via errors.Is (with unwrapping).
// - Fallback: string analysis for raw transport errors.
// - Unknown errors are treated as transient and retried.
func classifyFetchError(err error) fetchErrorClass {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fetchErrorCanceled

	case errors.Is(err, ErrFetchForbidden):
		return fetchErrorForbidden

	case errors.Is(err, ErrMissingDecryptionKey), errors.Is(err, ErrNoAuthorizationCode):
		return fetchErrorHard
	}

	// No known sentinel matched: fall back to string matching on the raw
	// transport error.
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "context canceled"),
		strings.Contains(errStr, "context deadline exceeded"):
		return fetchErrorCanceled

	case strings.Contains(errStr, "forbidden"),
		strings.Contains(errStr, "access denied"):
		return fetchErrorForbidden
	}

	return fetchErrorTransient
}
