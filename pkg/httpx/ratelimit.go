package httpx

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting parameters for an endpoint group.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

var (
	// StrictLimit guards credential and challenge endpoints against brute
	// force: 5 requests per minute per key.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit for authenticated admin operations.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 30, Window: time.Minute, Burst: 30}
)

// KeyExtractor derives the rate-limit bucket key from a request, e.g. the
// client IP or a form field such as the username.
type KeyExtractor func(*http.Request) string

// IPKey buckets by client IP.
func IPKey(r *http.Request) string { return ClientIP(r) }

// FormFieldKey buckets by a form field value, falling back to the client
// IP when the field is absent.
func FormFieldKey(field string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err == nil {
			if v := r.FormValue(field); v != "" {
				return v
			}
		}
		return ClientIP(r)
	}
}

type keyedLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

func (kl *keyedLimiter) get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Drop idle limiters occasionally so ephemeral keys don't accumulate.
	if time.Since(kl.lastCleanup) > 5*time.Minute {
		kl.lastCleanup = time.Now()
		for k, l := range kl.limiters {
			if l.Tokens() >= float64(kl.burst) {
				delete(kl.limiters, k)
			}
		}
	}

	l, ok := kl.limiters[key]
	if !ok {
		l = rate.NewLimiter(kl.limit, kl.burst)
		kl.limiters[key] = l
	}
	return l
}

// RateLimit returns middleware applying cfg per key extracted from the
// request. Over-limit requests get a 429 with a Retry-After hint.
func RateLimit(cfg RateLimitConfig, key KeyExtractor) func(http.Handler) http.Handler {
	kl := &keyedLimiter{
		limiters:    make(map[string]*rate.Limiter),
		limit:       rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !kl.get(key(r)).Allow() {
				w.Header().Set("Retry-After", "60")
				WriteError(w, http.StatusTooManyRequests, "rate_limited",
					"too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware is the common middleware function shape.
type Middleware = func(http.Handler) http.Handler

// Chain applies middlewares to h in declaration order.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
