// Package ratelimit keeps one token bucket per client.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages rate limits for multiple clients
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	perMin   int
}

// NewLimiter creates a limiter allowing requestsPerMinute per client with
// bursts of up to burst requests. A non-positive rate disables limiting.
func NewLimiter(requestsPerMinute int, burst int) *Limiter {
	r := rate.Inf
	if requestsPerMinute > 0 {
		r = rate.Limit(float64(requestsPerMinute) / 60.0)
	}
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
		perMin:   requestsPerMinute,
	}
}

// Limit returns the configured requests per minute
func (l *Limiter) Limit() int {
	return l.perMin
}

func (l *Limiter) get(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[clientID]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[clientID] = limiter
	}

	return limiter
}

// Allow reports whether clientID may make a request now. When it may not,
// retryAfter is how long until a token frees up.
func (l *Limiter) Allow(clientID string) (ok bool, retryAfter time.Duration) {
	limiter := l.get(clientID)

	now := time.Now()
	res := limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Remaining returns the tokens currently available to clientID
func (l *Limiter) Remaining(clientID string) int {
	tokens := l.get(clientID).Tokens()
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}
