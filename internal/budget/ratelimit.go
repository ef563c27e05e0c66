package budget

import (
	"sync"
	"time"
)

// RateWindow is a snapshot of the hourly call window.
type RateWindow struct {
	CallCount  int       `json:"callCount"`
	MaxPerHour int       `json:"maxPerHour"`
	ResetTime  time.Time `json:"resetTime"`
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// RateLimiter caps provider calls per fixed one-hour window.
//
// The window resets lazily: the first call of any method observed after
// ResetTime zeroes the count and starts a new hour.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	now    Clock
	state  RateWindow
}

// RateLimiterOption customizes a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock injects the time source.
func WithClock(c Clock) RateLimiterOption {
	return func(r *RateLimiter) {
		if c != nil {
			r.now = c
		}
	}
}

// WithWindow overrides the window length (one hour by default).
func WithWindow(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		if d > 0 {
			r.window = d
		}
	}
}

// NewRateLimiter creates a limiter allowing maxPerHour calls per window.
func NewRateLimiter(maxPerHour int, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		window: time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.state = RateWindow{
		MaxPerHour: maxPerHour,
		ResetTime:  r.now().Add(r.window),
	}
	return r
}

// CanProceed reports whether another call fits in the current window.
func (r *RateLimiter) CanProceed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollLocked()
	return r.state.CallCount < r.state.MaxPerHour
}

// RecordCall counts one call against the current window.
func (r *RateLimiter) RecordCall() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollLocked()
	r.state.CallCount++
}

// TryAcquire checks the window and counts a call in one step. It returns
// false, counting nothing, when the window is full. Concurrent callers use
// this instead of CanProceed followed by RecordCall.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollLocked()
	if r.state.CallCount >= r.state.MaxPerHour {
		return false
	}
	r.state.CallCount++
	return true
}

// Window returns a snapshot of the current window.
func (r *RateLimiter) Window() RateWindow {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollLocked()
	return r.state
}

func (r *RateLimiter) rollLocked() {
	now := r.now()
	if now.After(r.state.ResetTime) {
		r.state.CallCount = 0
		r.state.ResetTime = now.Add(r.window)
	}
}
