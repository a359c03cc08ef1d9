package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vincentdavis/league-gotta-bike/pkg/contextkeys"
	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	Prefix         string
}

// DefaultRateLimitConfig returns default rate limit settings
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 120,
		WindowDuration:    time.Minute,
		Prefix:            "league:ratelimit",
	}
}

// RateLimiter implements fixed window rate limiting in Redis
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	logger *observability.Logger
}

// NewRateLimiter creates a Redis-backed rate limiter
func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig, logger *observability.Logger) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = def.RequestsPerWindow
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = def.WindowDuration
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RateLimiter{redis: rdb, config: cfg, logger: logger}
}

// Allow counts a request for key and reports whether it is under the limit
// along with the remaining allowance and the window reset delay
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.config.Prefix, key)

	count64, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, 0, 0, fmt.Errorf("redis error: %w", err)
	}
	if count64 == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return true, 0, 0, fmt.Errorf("redis error: %w", err)
		}
	}
	ttl, err := rl.redis.TTL(ctx, redisKey).Result()
	if err != nil {
		return true, 0, 0, fmt.Errorf("redis error: %w", err)
	}

	count := int(count64)
	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.config.RequestsPerWindow, remaining, ttl, nil
}

// Reset clears the counter for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.config.Prefix, key)).Err()
}

// Handler limits requests per authenticated user, falling back to the
// remote address
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + r.RemoteAddr
		if actor, ok := contextkeys.GetActor(r.Context()); ok {
			key = "user:" + strconv.FormatInt(actor.UserID, 10)
		}

		allowed, remaining, ttl, err := rl.Allow(r.Context(), key)
		if err != nil {
			// fail open
			observability.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			retryAfter := rl.config.WindowDuration
			if ttl > 0 {
				retryAfter = ttl
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			httputil.WriteProblem(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
