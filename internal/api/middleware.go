package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/shehryarbajwa/browserbase-mcp/internal/ratelimit"
)

// RateLimitMiddleware creates a middleware that enforces rate limits
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := r.Header.Get("X-Client-ID")

			if limiter == nil || limiter.Limit() <= 0 || clientID == "" {
				next.ServeHTTP(w, r)
				return
			}

			limit := strconv.Itoa(limiter.Limit())

			ok, retryAfter := limiter.Allow(clientID)
			if !ok {
				w.Header().Set("X-RateLimit-Limit", limit)
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests,
					fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute per client.", limiter.Limit()))
				return
			}

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(clientID)))

			next.ServeHTTP(w, r)
		})
	}
}

// sweep reclaims idle sessions before a session route runs, so an expired
// id is neither listed nor reserved
func (h *Handler) sweep(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.registry.SweepExpired(r.Context(), h.registry.Now())
		next(w, r)
	}
}
