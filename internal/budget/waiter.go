package budget

import (
	"context"
	"time"
)

// countdownInterval is how often the Pauser reports remaining time.
const countdownInterval = 1 * time.Second

// CountdownFunc receives the remaining and total pause duration.
type CountdownFunc func(remaining, total time.Duration)

// Pauser blocks between iterations with a periodic countdown.
type Pauser struct {
	interval  time.Duration
	countdown CountdownFunc
}

// NewPauser creates a Pauser. A nil countdown disables reporting.
func NewPauser(countdown CountdownFunc) *Pauser {
	return &Pauser{interval: countdownInterval, countdown: countdown}
}

// Pause waits for d or until ctx is cancelled.
// Returns nil when the full duration elapsed, ctx.Err() otherwise.
func (p *Pauser) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	end := time.Now().Add(d)
	timer := time.NewTimer(d)
	defer timer.Stop()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if p.countdown != nil {
		p.countdown(d, d)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case now := <-ticker.C:
			remaining := end.Sub(now)
			if remaining <= 0 {
				return nil
			}
			if p.countdown != nil {
				p.countdown(remaining, d)
			}
		}
	}
}
