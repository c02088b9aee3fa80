package cdn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowsContainer(t *testing.T) {
	tests := []struct {
		name        string
		endpoint    Endpoint
		containerID ContainerID
		expected    bool
	}{
		{
			name:        "empty scope is unrestricted",
			endpoint:    Endpoint{Host: "a"},
			containerID: 17,
			expected:    true,
		},
		{
			name:        "scope including the container",
			endpoint:    Endpoint{Host: "b", AllowedContainers: []ContainerID{3, 17, 99}},
			containerID: 17,
			expected:    true,
		},
		{
			name:        "scope excluding the container",
			endpoint:    Endpoint{Host: "c", AllowedContainers: []ContainerID{3, 99}},
			containerID: 17,
			expected:    false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.endpoint.AllowsContainer(tc.containerID))
		})
	}
}

func TestClassificationAllowed(t *testing.T) {
	tests := []struct {
		name           string
		classification ServerClassification
		expected       bool
	}{
		{name: "edge cache", classification: ClassificationEdgeCache, expected: true},
		{name: "cdn", classification: ClassificationCDN, expected: true},
		{name: "origin", classification: "origin", expected: false},
		{name: "empty", classification: "", expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			endpoint := Endpoint{Host: "a", Classification: tc.classification}
			require.Equal(t, tc.expected, endpoint.ClassificationAllowed())
		})
	}
}
