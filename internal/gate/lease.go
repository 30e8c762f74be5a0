package gate

import (
	"context"
	"time"

	"voice-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisCallLease caps concurrent active calls per user with a TTL'd Redis
// counter. The TTL bounds leaked slots when a release is never observed
// (process crash, missed completion webhook).
type RedisCallLease struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisCallLease(rdb *redis.Client, limit int, ttl time.Duration) *RedisCallLease {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisCallLease{rdb: rdb, limit: limit, ttl: ttl}
}

func leaseKey(userID string) string { return "calls:active:" + userID }

func (l *RedisCallLease) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, leaseKey(userID), l.limit, l.ttl)
}

func (l *RedisCallLease) Release(ctx context.Context, userID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, leaseKey(userID))
}
