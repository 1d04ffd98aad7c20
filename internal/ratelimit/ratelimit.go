// Package ratelimit provides fixed-window rate limiting middleware with
// named buckets and a temporary block once a window is exceeded.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/metrics"
)

// Bucket names.
const (
	BucketAuth         = "auth"
	BucketAuthStrict   = "authStrict"
	BucketAPI          = "api"
	BucketPublicSubmit = "publicSubmit"
	BucketUploads      = "uploads"
	BucketWebhooks     = "webhooks"
	BucketGlobal       = "global"
)

// Bucket configures one named limit: at most Requests per Window, after
// which the key is blocked for Block.
type Bucket struct {
	Name     string
	Requests int
	Window   time.Duration
	Block    time.Duration
}

// DefaultBuckets is the platform's limit table.
var DefaultBuckets = map[string]Bucket{
	BucketAuth:         {Name: BucketAuth, Requests: 10, Window: time.Minute, Block: 15 * time.Minute},
	BucketAuthStrict:   {Name: BucketAuthStrict, Requests: 5, Window: time.Minute, Block: time.Hour},
	BucketAPI:          {Name: BucketAPI, Requests: 100, Window: time.Minute, Block: time.Minute},
	BucketPublicSubmit: {Name: BucketPublicSubmit, Requests: 10, Window: time.Minute, Block: 10 * time.Minute},
	BucketUploads:      {Name: BucketUploads, Requests: 20, Window: time.Hour, Block: time.Hour},
	BucketWebhooks:     {Name: BucketWebhooks, Requests: 100, Window: time.Minute, Block: time.Minute},
	BucketGlobal:       {Name: BucketGlobal, Requests: 1000, Window: time.Minute, Block: time.Minute},
}

// Decision is the outcome of one hit.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Backend counts hits per (bucket, key).
type Backend interface {
	Hit(ctx context.Context, b Bucket, key string) (Decision, error)
}

// Limiter applies named buckets over a backend.
type Limiter struct {
	backend Backend
	buckets map[string]Bucket
}

// New creates a limiter using DefaultBuckets.
func New(backend Backend) *Limiter {
	return NewWithBuckets(backend, DefaultBuckets)
}

// NewWithBuckets creates a limiter with a custom bucket table.
func NewWithBuckets(backend Backend, buckets map[string]Bucket) *Limiter {
	return &Limiter{backend: backend, buckets: buckets}
}

// Limit returns a gin middleware enforcing the named bucket per client IP.
// Backend errors fail open.
func (l *Limiter) Limit(name string) gin.HandlerFunc {
	b, ok := l.buckets[name]
	if !ok {
		panic("ratelimit: unknown bucket " + name)
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := ClientIP(c.Request)

		d, err := l.backend.Hit(ctx, b, key)
		if err != nil {
			logging.L(ctx).Warn("rate limiter backend failed", "bucket", b.Name, "error", err)
			c.Next()
			return
		}
		if !d.Allowed {
			metrics.RateLimitRejectionsTotal.WithLabelValues(b.Name).Inc()
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate_limit_exceeded",
				"message":    "Too many requests. Please slow down.",
				"retryAfter": retry,
			})
			return
		}
		c.Next()
	}
}

// ClientIP returns the caller's address, preferring CF-Connecting-IP, then
// X-Real-IP, then the first X-Forwarded-For entry, then the socket address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
