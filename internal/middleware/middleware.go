package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter throttles write endpoints per caller with a token bucket,
// keyed by the X-Owner-ID header: up to burst requests at once, refilled
// at one token per interval. A non-positive interval disables limiting.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	interval time.Duration
	burst    float64
	now      func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

func NewRateLimiter(interval time.Duration, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		interval: interval,
		burst:    float64(burst),
		now:      time.Now,
	}
}

// allow takes one token from the caller's bucket, reporting false when
// the bucket is empty.
func (r *RateLimiter) allow(owner string) bool {
	if r.interval <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.buckets[owner]
	if !ok {
		b = &bucket{tokens: r.burst, last: now}
		r.buckets[owner] = b
	}
	refill := float64(now.Sub(b.last)) / float64(r.interval)
	b.tokens = math.Min(r.burst, b.tokens+refill)
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.GetHeader("X-Owner-ID")
		if owner == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Owner-ID header required"})
			c.Abort()
			return
		}
		if !r.allow(owner) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
