package budget

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProviderLimit(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	reset := now.Add(2 * time.Hour)

	tests := []struct {
		name       string
		output     string
		wantLimit  bool
		wantRetry  time.Duration
		wantResetZ bool
	}{
		{
			name:      "unix timestamp",
			output:    fmt.Sprintf("Claude AI usage limit reached|%d", reset.Unix()),
			wantLimit: true,
			wantRetry: 2 * time.Hour,
		},
		{
			name:      "retry seconds",
			output:    "Error: 429 Too Many Requests, retry after 120 seconds",
			wantLimit: true,
			wantRetry: 2 * time.Minute,
		},
		{
			name:       "indicator without timing",
			output:     "You are out of extra usage for today",
			wantLimit:  true,
			wantResetZ: true,
		},
		{
			name:   "ordinary output",
			output: `{"score": 20, "findings": []}`,
		},
		{
			name:   "log prefix is not a limit",
			output: "[RATE LIMIT] waiting for reset...",
		},
		{
			name:   "quoted mention is not a limit",
			output: "Added `rateLimit` option to the client",
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectProviderLimit(tt.output, now)
			if !tt.wantLimit {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantRetry, got.RetryAfter)
			assert.Equal(t, tt.wantResetZ, got.ResetAt.IsZero())
			assert.Equal(t, tt.output, got.Message)
		})
	}
}
