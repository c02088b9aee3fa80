package cdn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/stretchr/testify/require"
)

func TestHTTPDirectoryClientListEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"host": "cache-1.example.net", "weighted_load": 3, "load": 40, "type": "cdn"},
			{"host": "cache-2.example.net", "weighted_load": 1, "load": 10, "type": "edge-cache", "allowed_app_ids": [17], "use_as_proxy": true}
		]`))
	}))
	defer server.Close()

	client := NewHTTPDirectoryClient(polyzero.NewLogger(), server.URL, time.Second)

	endpoints, err := client.ListEndpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, endpoints, 2)

	require.Equal(t, "cache-1.example.net", endpoints[0].Host)
	require.Equal(t, 3, endpoints[0].CapacityWeight)
	require.Equal(t, 40, endpoints[0].DeclaredLoad)
	require.Equal(t, ClassificationCDN, endpoints[0].Classification)
	require.Empty(t, endpoints[0].AllowedContainers)

	require.Equal(t, ClassificationEdgeCache, endpoints[1].Classification)
	require.Equal(t, []ContainerID{17}, endpoints[1].AllowedContainers)
	require.True(t, endpoints[1].UseAsProxy)
}

func TestHTTPDirectoryClientNon2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPDirectoryClient(polyzero.NewLogger(), server.URL, time.Second)

	_, err := client.ListEndpoints(context.Background())
	require.ErrorIs(t, err, ErrDirectoryHTTPError)
}

func TestHTTPDirectoryClientMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	}))
	defer server.Close()

	client := NewHTTPDirectoryClient(polyzero.NewLogger(), server.URL, time.Second)

	_, err := client.ListEndpoints(context.Background())
	require.Error(t, err)
}

func TestHTTPDirectoryClientHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewHTTPDirectoryClient(polyzero.NewLogger(), server.URL, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ListEndpoints(ctx)
	require.Error(t, err)
}
