package budget

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(3, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		require.True(t, rl.CanProceed(), "call %d should be allowed", i+1)
		rl.RecordCall()
	}

	assert.False(t, rl.CanProceed())
	assert.Equal(t, 3, rl.Window().CallCount)
}

func TestRateLimiter_ResetsAfterWindow(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(2, WithClock(clock.Now))

	rl.RecordCall()
	rl.RecordCall()
	require.False(t, rl.CanProceed())

	// Exactly at the reset time the window still holds.
	clock.Advance(time.Hour)
	assert.False(t, rl.CanProceed())

	clock.Advance(time.Second)
	assert.True(t, rl.CanProceed())

	w := rl.Window()
	assert.Equal(t, 0, w.CallCount)
	assert.Equal(t, clock.Now().Add(time.Hour), w.ResetTime)
}

func TestRateLimiter_RecordCallRollsWindow(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(5, WithClock(clock.Now))

	rl.RecordCall()
	rl.RecordCall()
	clock.Advance(2 * time.Hour)
	rl.RecordCall()

	assert.Equal(t, 1, rl.Window().CallCount)
}

func TestRateLimiter_CustomWindow(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(1, WithClock(clock.Now), WithWindow(time.Minute))

	rl.RecordCall()
	require.False(t, rl.CanProceed())

	clock.Advance(time.Minute + time.Millisecond)
	assert.True(t, rl.CanProceed())
}

func TestRateLimiter_ConcurrentRecord(t *testing.T) {
	rl := NewRateLimiter(1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				rl.RecordCall()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, rl.Window().CallCount)
}

func TestRateLimiter_TryAcquire(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(2, WithClock(clock.Now))

	assert.True(t, rl.TryAcquire())
	assert.True(t, rl.TryAcquire())
	assert.False(t, rl.TryAcquire())
	assert.Equal(t, 2, rl.Window().CallCount, "a refused acquire must not count")

	clock.Advance(time.Hour + time.Second)
	assert.True(t, rl.TryAcquire())
	assert.Equal(t, 1, rl.Window().CallCount)
}

func TestRateLimiter_TryAcquireConcurrentNeverExceedsMax(t *testing.T) {
	for _, limit := range []int{0, 1, 7} {
		rl := NewRateLimiter(limit)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			granted int
		)
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if rl.TryAcquire() {
						mu.Lock()
						granted++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, limit, granted, "limit=%d", limit)
		assert.Equal(t, limit, rl.Window().CallCount, "limit=%d", limit)
	}
}
