package log

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   []int
		expected string
	}{
		{
			name:     "short string is returned unchanged",
			input:    "ok",
			expected: "ok",
		},
		{
			name:     "long string is truncated with ellipsis",
			input:    strings.Repeat("x", 200),
			expected: strings.Repeat("x", 97) + "...",
		},
		{
			name:     "explicit max length",
			input:    "abcdefghij",
			maxLen:   []int{8},
			expected: "abcde...",
		},
		{
			name:     "tiny max length skips ellipsis",
			input:    "abcdefghij",
			maxLen:   []int{2},
			expected: "ab",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Preview(tc.input, tc.maxLen...))
		})
	}
}
