package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{
			name:     "empty token",
			token:    "",
			expected: "***",
		},
		{
			name:     "very short token",
			token:    "abcd",
			expected: "***",
		},
		{
			name:     "short token keeps first two chars",
			token:    "abcdefgh",
			expected: "ab***",
		},
		{
			name:     "long token keeps head and tail",
			token:    "1971800d4d82861d8f2c1651fea4d212",
			expected: "1971***d212",
		},
		{
			name:     "nine chars is already long form",
			token:    "123456789",
			expected: "1234***6789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Token(tt.token))
		})
	}
}
