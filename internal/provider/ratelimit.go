package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per provider name
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
	mu       sync.RWMutex
}

// NewRateLimiter creates a registry where unregistered providers get rps
// requests per second with the given burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

// Register sets an explicit limit for a provider
func (r *RateLimiter) Register(provider string, rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[provider] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until the provider's bucket allows a request. Local providers
// and a non-positive default rate are unlimited.
func (r *RateLimiter) Wait(ctx context.Context, provider string) error {
	if r == nil || provider == "mock" || provider == "hash" {
		return nil
	}
	limiter := r.getLimiter(provider)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (r *RateLimiter) getLimiter(provider string) *rate.Limiter {
	r.mu.RLock()
	limiter, ok := r.limiters[provider]
	r.mu.RUnlock()
	if ok {
		return limiter
	}
	if r.rps <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if limiter, ok = r.limiters[provider]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(r.rps), r.burst)
	r.limiters[provider] = limiter
	return limiter
}
