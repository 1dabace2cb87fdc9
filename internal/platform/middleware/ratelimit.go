package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"

	"github.com/diabcrf/crf/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int64
	// MaxClients bounds the number of tracked buckets. Idle buckets expire
	// after IdleTTL.
	MaxClients int
	IdleTTL    time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		MaxClients:        10000,
		IdleTTL:           10 * time.Minute,
	}
}

// bucketStore holds one token bucket per client key.
type bucketStore struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *ratelimit.Bucket]
	config  RateLimitConfig
}

func newBucketStore(cfg RateLimitConfig) *bucketStore {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultRateLimitConfig().MaxClients
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	return &bucketStore{
		buckets: expirable.NewLRU[string, *ratelimit.Bucket](cfg.MaxClients, nil, cfg.IdleTTL),
		config:  cfg,
	}
}

func (s *bucketStore) get(key string) *ratelimit.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets.Get(key); ok {
		return b
	}
	b := ratelimit.NewBucketWithRate(s.config.RequestsPerSecond, s.config.BurstSize)
	s.buckets.Add(key, b)
	return b
}

// retryAfter is the whole number of seconds until one token refills.
func retryAfter(rate float64) int {
	if rate <= 0 {
		return 1
	}
	return int(math.Ceil(1 / rate))
}

// clientKey identifies the caller: the token subject when authenticated,
// otherwise the client IP.
func clientKey(c echo.Context) string {
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns a per-client rate limiting middleware.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newBucketStore(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bucket := store.get(clientKey(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			if bucket.TakeAvailable(1) == 0 {
				h.Set("Retry-After", strconv.Itoa(retryAfter(cfg.RequestsPerSecond)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
			return next(c)
		}
	}
}
