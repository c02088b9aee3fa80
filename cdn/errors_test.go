package cdn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected fetchErrorClass
	}{
		{
			name:     "context canceled",
			err:      context.Canceled,
			expected: fetchErrorCanceled,
		},
		{
			name:     "context deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: fetchErrorCanceled,
		},
		{
			name:     "wrapped cancellation",
			err:      fmt.Errorf("transfer aborted: %w", context.Canceled),
			expected: fetchErrorCanceled,
		},
		{
			name:     "forbidden sentinel",
			err:      ErrFetchForbidden,
			expected: fetchErrorForbidden,
		},
		{
			name:     "wrapped forbidden",
			err:      fmt.Errorf("GET manifest: %w", ErrFetchForbidden),
			expected: fetchErrorForbidden,
		},
		{
			name:     "missing decryption key",
			err:      ErrMissingDecryptionKey,
			expected: fetchErrorHard,
		},
		{
			name:     "empty authorization code",
			err:      fmt.Errorf("%w: container 5", ErrNoAuthorizationCode),
			expected: fetchErrorHard,
		},
		{
			name:     "raw forbidden transport error",
			err:      errors.New("server returned 403 forbidden"),
			expected: fetchErrorForbidden,
		},
		{
			name:     "raw cancellation string",
			err:      errors.New("Get \"https://cache-1/manifest\": context canceled"),
			expected: fetchErrorCanceled,
		},
		{
			name:     "io timeout",
			err:      errors.New("read tcp 10.0.0.1:443: i/o timeout"),
			expected: fetchErrorTransient,
		},
		{
			name:     "unknown error defaults to transient",
			err:      errors.New("completely unknown error type"),
			expected: fetchErrorTransient,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, classifyFetchError(tc.err))
		})
	}
}
