package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	apiContext "orgauthz/internal/api/context"
	"orgauthz/internal/engine/authz"
	"orgauthz/internal/pkg/errors"
)

// RateLimiter keeps one token bucket per organization. Idle buckets fall out
// of the LRU after ten minutes.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
}

func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 100
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](10000, nil, 10*time.Minute),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.buckets.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets.Add(key, limiter)
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Handle keys requests by organization, falling back to the remote address
// for unauthenticated routes.
func (rl *RateLimiter) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + r.RemoteAddr
		if caller, ok := r.Context().Value(apiContext.Caller).(authz.Caller); ok {
			key = "org:" + caller.OrganizationID
		}

		if !rl.Allow(key) {
			w.Header().Set("Retry-After", "60")
			errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
			return
		}

		next(w, r)
	}
}
