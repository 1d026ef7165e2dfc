package main

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a per-client sliding-window request counter. It lives in
// process memory only: behind multiple server processes each instance counts
// independently, which is a known limitation, not a designed behavior.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests map[string][]time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		requests: make(map[string][]time.Time),
	}
}

// Allow records one request for the client and reports whether it fits the
// window. Entries older than the window are dropped on every call.
func (rl *RateLimiter) Allow(client string) bool {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	kept := rl.requests[client][:0]
	for _, t := range rl.requests[client] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.limit {
		rl.requests[client] = kept
		return false
	}
	rl.requests[client] = append(kept, now)
	return true
}

// StartCleanup periodically drops clients that have gone quiet so the map
// does not grow without bound.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-rl.window)
				rl.mu.Lock()
				for client, times := range rl.requests {
					if len(times) == 0 || !times[len(times)-1].After(cutoff) {
						delete(rl.requests, client)
					}
				}
				rl.mu.Unlock()
			}
		}
	}()
}
