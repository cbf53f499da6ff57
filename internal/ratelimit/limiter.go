// Package ratelimit provides per-key token bucket rate limiting for the
// interpreter-backed entry points (HTTP clients and MCP tools).
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimited is wrapped by every rate limit error.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int              // max burst size (also initial token count)
	nowFunc  func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
		nowFunc:  time.Now,
	}
}

// Allow checks if a request for the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim.AllowN(l.nowFunc(), 1)
}

// Check is Allow as an error: nil when allowed, an error wrapping
// ErrLimited otherwise.
func (l *Limiter) Check(key string) error {
	if !l.Allow(key) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, key)
	}
	return nil
}

// Keys returns the number of keys with a bucket.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Adding a prompt may call a hosted model, so it is the tightest.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"tango_add":      NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"tango_simulate": NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"tango_graph":    NewLimiter(1.0, 10),      // 60/minute, burst 10
		"tango_prompts":  NewLimiter(1.0, 10),      // 60/minute, burst 10
		"tango_reset":    NewLimiter(5.0/60.0, 1),  // 5/minute, burst 1
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	return limiter.Check(toolName)
}
