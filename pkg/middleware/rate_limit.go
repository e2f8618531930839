package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/metrics"
)

// Limiter decides whether the request identified by key may proceed.
// retryAfter is a hint for the Retry-After header when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Name() string
}

// RateLimit enforces l per authenticated user, falling back to the client IP
// for anonymous routes. Place it after AuthMiddleware on protected groups.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry, err := l.Allow(c.Request.Context(), rateKey(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if !ok {
			secs := int(retry.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			metrics.RateLimitRejected.WithLabelValues(l.Name()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(l.Name()).Inc()
		c.Next()
	}
}

func rateKey(c *gin.Context) string {
	if u := CurrentUser(c); u != nil {
		return fmt.Sprintf("user:%d", u.ID)
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// MemoryLimiter is a per-key token bucket held in process memory.
type MemoryLimiter struct {
	rps     float64
	burst   int
	buckets sync.Map // key -> *rate.Limiter
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{rps: rps, burst: burst}
}

func (m *MemoryLimiter) Name() string { return "memory" }

func (m *MemoryLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	v, _ := m.buckets.LoadOrStore(key, rate.NewLimiter(rate.Limit(m.rps), m.burst))
	lim := v.(*rate.Limiter)
	if lim.Allow() {
		return true, 0, nil
	}
	retry := time.Second
	if m.rps > 0 {
		retry = time.Duration(float64(time.Second) / m.rps)
	}
	return false, retry, nil
}
