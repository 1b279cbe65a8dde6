package api

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds request rate to at most `requests` calls per
// sliding `window`, matching Pipedrive's published budget. Wait blocks
// until a slot is free or the context is done.
type RateLimiter struct {
	mu       sync.Mutex
	requests int
	window   time.Duration
	stamps   []time.Time

	// now is swappable for tests
	now func() time.Time
}

// NewRateLimiter creates a limiter allowing `requests` per `window`.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests < 1 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		requests: requests,
		window:   window,
		now:      time.Now,
	}
}

// Wait blocks until the caller may issue one request.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := rl.now()
		rl.prune(now)

		if len(rl.stamps) < rl.requests {
			rl.stamps = append(rl.stamps, now)
			rl.mu.Unlock()
			return nil
		}

		// Oldest stamp leaves the window first
		wait := rl.stamps[0].Add(rl.window).Sub(now)
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available reports how many requests could be issued right now
// without blocking.
func (rl *RateLimiter) Available() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(rl.now())
	return rl.requests - len(rl.stamps)
}

func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.stamps) && !rl.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rl.stamps = append(rl.stamps[:0], rl.stamps[i:]...)
	}
}
