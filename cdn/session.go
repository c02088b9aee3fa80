package cdn

import "context"

// SessionProvider is the authenticated session collaborator. It issues
// per-request credentials and decryption keys, and reports connectivity.
// The pool and fetcher only consume this interface; the concrete session
// (login handshake, token plumbing) lives outside this subsystem.
type SessionProvider interface {
	// GetPerHostToken returns the cached short-lived authorization token for
	// the given host, if one has been issued for this container.
	GetPerHostToken(containerID ContainerID, host string) (string, bool)

	// RequestPerHostToken asks the session to issue a new per-host token.
	// The token becomes visible through GetPerHostToken once resolved.
	RequestPerHostToken(ctx context.Context, ownerID OwnerID, containerID ContainerID, endpoint *Endpoint) error

	// GetRequestAuthorizationCode returns the request-authorization code for
	// a specific artifact. A zero/empty code indicates the session could not
	// authorize the request.
	GetRequestAuthorizationCode(ctx context.Context, containerID ContainerID, ownerID OwnerID, artifactID ArtifactID, variant string) (string, error)

	// GetDecryptionKey returns the decryption key for the container's
	// content, if the session holds one.
	GetDecryptionKey(containerID ContainerID) ([]byte, bool)

	// IsConnected reports whether the session is currently connected.
	IsConnected() bool
}

// FetchRequest carries everything the content-fetch client needs to transfer
// one artifact from one endpoint.
type FetchRequest struct {
	ArtifactID        ArtifactID
	AuthorizationCode string
	Endpoint          *Endpoint
	DecryptionKey     []byte

	// Proxy is the designated proxy-capable endpoint, if the current pool
	// population selected one.
	Proxy *Endpoint

	// HostToken is the per-host authorization token, empty if none issued.
	HostToken string
}

// ContentClient performs the actual byte transfer for one artifact against
// one endpoint. Implementations must return an error matching
// ErrFetchForbidden (via errors.Is) for access-denied class failures so the
// fetcher can distinguish authorization gaps from server unhealthiness.
type ContentClient interface {
	Fetch(ctx context.Context, req FetchRequest) ([]byte, error)
}

// PenaltyStore is the durable per-host penalty score store. Scores survive
// process restarts. Implementations live in the store package.
type PenaltyStore interface {
	Get(ctx context.Context, host string) (int64, error)
	Set(ctx context.Context, host string, penalty int64) error
}
