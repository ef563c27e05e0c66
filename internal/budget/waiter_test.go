package budget

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauser_WaitsFullDuration(t *testing.T) {
	p := NewPauser(nil)

	start := time.Now()
	err := p.Pause(context.Background(), 50*time.Millisecond)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPauser_ZeroDuration(t *testing.T) {
	p := NewPauser(nil)
	assert.NoError(t, p.Pause(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Pause(ctx, 0), context.Canceled)
}

func TestPauser_Cancelled(t *testing.T) {
	p := NewPauser(nil)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Pause(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPauser_Countdown(t *testing.T) {
	var mu sync.Mutex
	var calls []time.Duration
	p := NewPauser(func(remaining, total time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 35*time.Millisecond, total)
		calls = append(calls, remaining)
	})
	p.interval = 10 * time.Millisecond

	require.NoError(t, p.Pause(context.Background(), 35*time.Millisecond))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, calls)
	assert.Equal(t, 35*time.Millisecond, calls[0], "initial call reports the full duration")
	for i := 1; i < len(calls); i++ {
		assert.Less(t, calls[i], calls[i-1])
	}
}
