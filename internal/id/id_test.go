package id

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Monotonic(t *testing.T) {
	prev := New()
	for range 1000 {
		next := New()
		assert.Less(t, prev, next)
		prev = next
	}

	_, err := ulid.Parse(prev)
	require.NoError(t, err)
}

func TestClientOrderID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		wantPrefix string
	}{
		{"empty", "", ""},
		{"short", "cli-", "cli-"},
		{"truncated", strings.Repeat("x", 20), strings.Repeat("x", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClientOrderID(tt.prefix)
			assert.LessOrEqual(t, len(got), MaxLength)
			assert.True(t, strings.HasPrefix(got, tt.wantPrefix))
			_, err := ulid.Parse(strings.TrimPrefix(got, tt.wantPrefix))
			assert.NoError(t, err)
		})
	}
}
