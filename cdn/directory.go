package cdn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/log"
)

// DirectoryClient returns a fresh list of candidate endpoints from the
// directory service. A nil/empty listing or an error signals a transient
// directory outage; the pool's replenishment loop handles backoff.
type DirectoryClient interface {
	ListEndpoints(ctx context.Context) ([]*Endpoint, error)
}

const (
	defaultDirectoryTimeout = 10 * time.Second
)

// ErrDirectoryHTTPError indicates the directory service returned a non-2xx
// HTTP status code.
var ErrDirectoryHTTPError = fmt.Errorf("directory service returned non 2xx HTTP status code")

// endpointListing is the wire form of a single directory entry.
type endpointListing struct {
	Host              string   `json:"host"`
	Weight            int      `json:"weighted_load"`
	Load              int      `json:"load"`
	AllowedContainers []uint32 `json:"allowed_app_ids"`
	UseAsProxy        bool     `json:"use_as_proxy"`
	Type              string   `json:"type"`
}

// httpDirectoryClient fetches endpoint listings over HTTP.
type httpDirectoryClient struct {
	logger     polylog.Logger
	httpClient *http.Client
	url        string
}

// NewHTTPDirectoryClient creates a DirectoryClient that GETs a JSON endpoint
// listing from the given URL. A non-positive timeout falls back to 10s.
func NewHTTPDirectoryClient(logger polylog.Logger, url string, timeout time.Duration) DirectoryClient {
	if timeout <= 0 {
		timeout = defaultDirectoryTimeout
	}

	return &httpDirectoryClient{
		logger: logger.With("component", "directory_client"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		url: url,
	}
}

func (c *httpDirectoryClient) ListEndpoints(ctx context.Context) ([]*Endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building directory request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching directory listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d", ErrDirectoryHTTPError, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading directory listing: %w", err)
	}

	var listings []endpointListing
	if err := json.Unmarshal(body, &listings); err != nil {
		c.logger.Warn().Err(err).Str("body_preview", log.Preview(string(body))).Msg("directory listing is not valid JSON")
		return nil, fmt.Errorf("unmarshaling directory listing: %w", err)
	}

	endpoints := make([]*Endpoint, 0, len(listings))
	for _, listing := range listings {
		allowed := make([]ContainerID, 0, len(listing.AllowedContainers))
		for _, containerID := range listing.AllowedContainers {
			allowed = append(allowed, ContainerID(containerID))
		}

		endpoints = append(endpoints, &Endpoint{
			Host:              listing.Host,
			CapacityWeight:    listing.Weight,
			DeclaredLoad:      listing.Load,
			AllowedContainers: allowed,
			UseAsProxy:        listing.UseAsProxy,
			Classification:    ServerClassification(listing.Type),
		})
	}

	c.logger.Debug().Int("endpoints", len(endpoints)).Msg("fetched directory listing")
	return endpoints, nil
}
