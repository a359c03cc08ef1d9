package rbac

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
)

// noLevel marks a cached NotAMember result
const noLevel = "none"

// defaultSharedL1TTL caps the LRU lifetime when Redis is shared, since
// another process's Invalidate only reaches this one through Redis
const defaultSharedL1TTL = 5 * time.Second

// CacheConfig configures CachedResolver
type CacheConfig struct {
	Size int
	// TTL is the Redis lifetime and, without Redis, the LRU lifetime
	TTL time.Duration
	// L1TTL is the LRU lifetime when Redis is used. It defaults to the
	// smaller of TTL and five seconds.
	L1TTL time.Duration

	KeyPrefix string
}

// Invalidator drops cached levels after a membership changes
type Invalidator interface {
	Invalidate(ctx context.Context, userID, orgID int64) error
}

// CachedResolver caches resolved levels in an LRU and, when a client is
// given, in Redis so that several server processes share results.
//
// A level read from the backend is not cached when an Invalidate ran while it
// was being read. Other processes keep their LRU entry for at most L1TTL
// after an invalidation.
type CachedResolver struct {
	next    LevelResolver
	l1      *expirable.LRU[string, string]
	l1TTL   time.Duration
	redis   *redis.Client
	ttl     time.Duration
	prefix  string
	gen     atomic.Uint64
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewCachedResolver wraps next. rdb, logger and metrics may be nil.
func NewCachedResolver(next LevelResolver, cfg CacheConfig, rdb *redis.Client, logger *observability.Logger, metrics *observability.Metrics) *CachedResolver {
	if cfg.Size <= 0 {
		cfg.Size = 10000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	l1TTL := cfg.TTL
	if rdb != nil {
		l1TTL = cfg.L1TTL
		if l1TTL <= 0 {
			l1TTL = defaultSharedL1TTL
		}
		if l1TTL > cfg.TTL {
			l1TTL = cfg.TTL
		}
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "league:perm:"
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CachedResolver{
		next:    next,
		l1:      expirable.NewLRU[string, string](cfg.Size, nil, l1TTL),
		l1TTL:   l1TTL,
		redis:   rdb,
		ttl:     cfg.TTL,
		prefix:  cfg.KeyPrefix,
		logger:  logger,
		metrics: metrics,
	}
}

var (
	_ Authorizer  = (*CachedResolver)(nil)
	_ Invalidator = (*CachedResolver)(nil)
)

func (c *CachedResolver) key(userID, orgID int64) string {
	return fmt.Sprintf("%s%d:%d", c.prefix, userID, orgID)
}

// Resolve consults the LRU, then Redis, then the wrapped resolver
func (c *CachedResolver) Resolve(ctx context.Context, userID, orgID int64) (models.PermissionLevel, error) {
	key := c.key(userID, orgID)

	if v, ok := c.l1.Get(key); ok {
		c.metrics.RecordCache("l1", true)
		return decodeLevel(v, userID, orgID)
	}
	c.metrics.RecordCache("l1", false)

	gen := c.gen.Load()
	if c.redis != nil {
		v, err := c.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			c.metrics.RecordCache("l2", true)
			if c.gen.Load() == gen {
				c.l1.Add(key, v)
			}
			return decodeLevel(v, userID, orgID)
		case errors.Is(err, redis.Nil):
			c.metrics.RecordCache("l2", false)
		default:
			c.logger.WithError(err).Warn("permission cache read failed")
		}
	}

	level, err := c.next.Resolve(ctx, userID, orgID)
	var v string
	switch {
	case err == nil:
		v = string(level)
	case IsNotAMember(err):
		v = noLevel
	default:
		return "", err
	}

	if c.gen.Load() != gen {
		// invalidated while reading, v may already be stale
		return level, err
	}
	c.l1.Add(key, v)
	if c.redis != nil {
		if err := c.redis.Set(ctx, key, v, c.ttl).Err(); err != nil {
			c.logger.WithError(err).Warn("permission cache write failed")
		}
	}
	return level, err
}

func (c *CachedResolver) Can(ctx context.Context, userID, orgID int64, action Action) (bool, error) {
	ok, err := can(ctx, c, userID, orgID, action)
	if err == nil {
		c.metrics.RecordAuthz(string(action), ok)
	}
	return ok, err
}

func (c *CachedResolver) Authorize(ctx context.Context, userID, orgID int64, action Action) error {
	err := authorize(ctx, c, userID, orgID, action)
	if err == nil || IsUnauthorized(err) {
		c.metrics.RecordAuthz(string(action), err == nil)
	}
	return err
}

// Invalidate removes the cached level from both tiers
func (c *CachedResolver) Invalidate(ctx context.Context, userID, orgID int64) error {
	key := c.key(userID, orgID)
	c.gen.Add(1)
	c.l1.Remove(key)
	if c.redis != nil {
		if err := c.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to invalidate permission cache: %w", err)
		}
	}
	return nil
}

func decodeLevel(v string, userID, orgID int64) (models.PermissionLevel, error) {
	if v == noLevel {
		return "", &AuthorizationError{Kind: NotAMember, UserID: userID, OrganizationID: orgID}
	}
	return models.PermissionLevel(v), nil
}
