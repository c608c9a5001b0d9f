package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter caps mutating requests per client in fixed one-minute windows.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	now       func() time.Time
	clients   map[string]*clientWindow
}

type clientWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		now:       time.Now,
		clients:   make(map[string]*clientWindow),
	}
}

// Allow records a request from clientID or returns a *RateLimitError.
func (rl *RateLimiter) Allow(clientID string) error {
	if rl == nil || rl.perMinute <= 0 {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[clientID]
	if !ok || now.Sub(w.start) >= time.Minute {
		w = &clientWindow{start: now}
		rl.clients[clientID] = w
	}
	if w.count >= rl.perMinute {
		return &RateLimitError{Limit: rl.perMinute, RetryAfter: time.Minute - now.Sub(w.start)}
	}
	w.count++
	return nil
}

// Used returns the number of requests counted in the client's current window.
func (rl *RateLimiter) Used(clientID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if w, ok := rl.clients[clientID]; ok {
		return w.count
	}
	return 0
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d per minute, retry after: %v)", e.Limit, e.RetryAfter)
}
