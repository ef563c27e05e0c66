package budget

import (
	"sync"
	"time"
)

// Circuit breaker defaults.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 5 * time.Minute
)

// CircuitBreakerState is a snapshot of the breaker.
type CircuitBreakerState struct {
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"lastFailure"`
	Open        bool      `json:"open"`
}

// CircuitBreaker opens after a run of consecutive failures and closes again
// once the cooldown has passed since the last failure. Recovery is lazy: it
// happens on the first CanProceed after the cooldown, not on a timer.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       Clock
	onChange  func(open bool)
	state     CircuitBreakerState
}

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock injects the time source.
func WithBreakerClock(c Clock) BreakerOption {
	return func(b *CircuitBreaker) {
		if c != nil {
			b.now = c
		}
	}
}

// OnStateChange registers a callback invoked after every open/close
// transition. It runs outside the breaker lock.
func OnStateChange(fn func(open bool)) BreakerOption {
	return func(b *CircuitBreaker) {
		b.onChange = fn
	}
}

// NewCircuitBreaker creates a breaker. Non-positive arguments select the defaults.
func NewCircuitBreaker(threshold int, cooldown time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	b := &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RecordFailure counts a failure and opens the breaker at the threshold.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	b.state.Failures++
	b.state.LastFailure = b.now()
	opened := false
	if !b.state.Open && b.state.Failures >= b.threshold {
		b.state.Open = true
		opened = true
	}
	b.mu.Unlock()

	if opened {
		b.notify(true)
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	wasOpen := b.state.Open
	b.state.Failures = 0
	b.state.Open = false
	b.mu.Unlock()

	if wasOpen {
		b.notify(false)
	}
}

// CanProceed reports whether calls may be issued.
func (b *CircuitBreaker) CanProceed() bool {
	b.mu.Lock()
	if !b.state.Open {
		b.mu.Unlock()
		return true
	}
	if b.now().Sub(b.state.LastFailure) <= b.cooldown {
		b.mu.Unlock()
		return false
	}
	b.state.Open = false
	b.state.Failures = 0
	b.mu.Unlock()

	b.notify(false)
	return true
}

// State returns a snapshot without triggering lazy recovery.
func (b *CircuitBreaker) State() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) notify(open bool) {
	if b.onChange != nil {
		b.onChange(open)
	}
}
