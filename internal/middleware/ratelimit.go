package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Parthmh361/pure-harvest/internal/cache"
	"github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/logger"
	"github.com/Parthmh361/pure-harvest/pkg/response"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateStore coordinates rate limiting decisions for a key.
type RateStore interface {
	// Allow records one request for key and reports whether it fits the limit,
	// the remaining allowance and when the allowance is fully restored.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, reset time.Duration, err error)
}

// RateLimit limits requests per caller and route. Authenticated callers are
// keyed by user id, anonymous ones by client IP. Store errors fail open.
func RateLimit(store RateStore, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || limit <= 0 || window <= 0 {
			c.Next()
			return
		}

		caller := c.GetString(CtxUserIDKey)
		if caller == "" {
			caller = c.ClientIP()
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		allowed, remaining, reset, err := store.Allow(c.Request.Context(), rateLimitKeyPrefix+caller+":"+route, limit, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(reset.Seconds()))))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(max(1, int(math.Ceil(reset.Seconds())))))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}

// memoryRateStore keeps a token bucket per key. Buckets refill at
// limit/window and hold at most limit tokens.
type memoryRateStore struct {
	mu       sync.Mutex
	limiters map[string]*memoryLimiter
	now      func() time.Time
	idleTTL  time.Duration
	lastScan time.Time
}

type memoryLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRateStore constructs a process-local rate store suitable for single
// instance deployments and tests.
func NewMemoryRateStore() RateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(now func() time.Time) *memoryRateStore {
	return &memoryRateStore{
		limiters: make(map[string]*memoryLimiter),
		now:      now,
		idleTTL:  10 * time.Minute,
		lastScan: now(),
	}
}

func (s *memoryRateStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, int, time.Duration, error) {
	if limit <= 0 || window <= 0 {
		return true, 0, 0, nil
	}
	now := s.now()
	every := window / time.Duration(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIdleLocked(now)

	entry, ok := s.limiters[key]
	if !ok {
		entry = &memoryLimiter{limiter: rate.NewLimiter(rate.Every(every), limit)}
		s.limiters[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	tokens := entry.limiter.TokensAt(now)
	remaining := int(math.Floor(tokens))
	missing := float64(limit) - tokens
	reset := time.Duration(missing * float64(every))
	return allowed, remaining, reset, nil
}

func (s *memoryRateStore) evictIdleLocked(now time.Time) {
	if now.Sub(s.lastScan) < s.idleTTL {
		return
	}
	s.lastScan = now
	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > s.idleTTL {
			delete(s.limiters, key)
		}
	}
}

// counterRateStore applies a fixed window counter kept in a shared cache so
// that every replica sees the same budget.
type counterRateStore struct {
	store cache.Store
}

// NewCacheRateStore wraps a shared cache store, typically Redis.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &counterRateStore{store: store}
}

func (s *counterRateStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Duration, error) {
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	if err != nil {
		return false, 0, 0, err
	}
	return count <= int64(limit), limit - int(count), ttl, nil
}
