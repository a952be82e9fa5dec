package httpmiddleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// GinMiddleware enforces per-IP limits with the JSON failure shape of the API.
// Limiter errors fail open and are logged.
func GinMiddleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		ok, err := l.Allow(c.Request.Context(), ip)
		if err != nil {
			slog.Warn("rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "too many requests"})
			return
		}
		c.Next()
	}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucket is an in-memory per-key limiter.
type TokenBucket struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	burst    int
}

// NewTokenBucket allows perMinute requests per key with bursts up to burst.
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = perMinute
	}
	return &TokenBucket{
		limiters: make(map[string]*ipLimiter),
		r:        rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

func (l *TokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.limiters[key]
	if !ok {
		v = &ipLimiter{limiter: rate.NewLimiter(l.r, l.burst)}
		l.limiters[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow(), nil
}

// Sweep drops keys idle for longer than idle. Run it periodically.
func (l *TokenBucket) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, v := range l.limiters {
		if time.Since(v.lastSeen) > idle {
			delete(l.limiters, k)
			n++
		}
	}
	return n
}

// RedisLimiter is a fixed one-minute window counter shared by all instances.
type RedisLimiter struct {
	client    *redis.Client
	perMinute int
	prefix    string
	now       func() time.Time
}

// NewRedisLimiter allows perMinute requests per key per wall-clock minute.
func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, perMinute: perMinute, prefix: "attendance:ratelimit:", now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.windowKey(key)
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, 2*time.Minute)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.perMinute), nil
}

func (l *RedisLimiter) windowKey(key string) string {
	return l.prefix + key + ":" + strconv.FormatInt(l.now().Unix()/60, 10)
}
