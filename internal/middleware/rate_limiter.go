package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

// Policy describes a token bucket: Requests tokens refill over Window, up to
// Burst at once. Buckets unused for IdleTTL are dropped by Sweep.
type Policy struct {
	Requests int
	Window   time.Duration
	Burst    int
	IdleTTL  time.Duration
}

func (p Policy) normalized() Policy {
	if p.Requests <= 0 {
		p.Requests = 1
	}
	if p.Window <= 0 {
		p.Window = time.Second
	}
	if p.Burst <= 0 {
		p.Burst = 1
	}
	if p.IdleTTL <= 0 {
		p.IdleTTL = 5 * time.Minute
	}
	return p
}

// RetryAfter is the time needed to refill a single token.
func (p Policy) RetryAfter() time.Duration {
	p = p.normalized()
	return p.Window / time.Duration(p.Requests)
}

type bucket struct {
	tokens   *rate.Limiter
	lastUsed time.Time
}

// KeyedLimiter keeps one token bucket per caller key.
type KeyedLimiter struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewIPRateLimiter builds a KeyedLimiter for the given policy.
func NewIPRateLimiter(policy Policy) *KeyedLimiter {
	return &KeyedLimiter{
		policy:  policy.normalized(),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow spends a token from key's bucket.
func (l *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(rate.Every(l.policy.RetryAfter()), l.policy.Burst)}
		l.buckets[key] = b
	}
	b.lastUsed = now
	l.mu.Unlock()

	return b.tokens.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the policy's IdleTTL and reports
// how many were removed.
func (l *KeyedLimiter) Sweep() int {
	cutoff := l.now().Add(-l.policy.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RetryAfter exposes the policy refill interval for the Retry-After header.
func (l *KeyedLimiter) RetryAfter() time.Duration {
	return l.policy.RetryAfter()
}

// RateLimit rejects requests with 429 once the caller's IP exceeds the
// limiter's budget for scope. A nil limiter disables the check.
func RateLimit(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	retryAfter := "1"
	if hinted, ok := limiter.(interface{ RetryAfter() time.Duration }); ok {
		secs := math.Ceil(hinted.RetryAfter().Seconds())
		retryAfter = strconv.Itoa(max(1, int(secs)))
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + ClientIP(r)
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", retryAfter)
				writeError(r.Context(), w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Janitor calls Sweep on limiter every interval until ctx is cancelled.
// Limiters without a Sweep method are ignored.
func Janitor(ctx context.Context, limiter RateLimiter, interval time.Duration) {
	sweeper, ok := limiter.(interface{ Sweep() int })
	if !ok {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweeper.Sweep()
		}
	}
}
