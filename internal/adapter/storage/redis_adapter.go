package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	linkageKeyPrefix   = "devices:"
	linkageKeyTTL      = 24 * time.Hour
)

// fixedWindowScript increments the per-key counter and stamps the window TTL
// on first hit, so count-and-expire is one atomic step. Returns the count
// after increment.
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_ms = tonumber(ARGV[1])

local count = redis.call('INCR', key)
if count == 1 then
	redis.call('PEXPIRE', key, window_ms)
end

return count
`)

// RedisAdapter backs the rate limiter and the device-linkage store. Shared
// counters live in Redis so the limits hold across service instances.
type RedisAdapter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisAdapter(client *redis.Client, limit int, window time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, limit: limit, window: window}
}

// Allow counts one request for key and reports whether it is still within
// the window limit.
func (r *RedisAdapter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := fixedWindowScript.Run(ctx, r.client,
		[]string{rateLimitKeyPrefix + key}, r.window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return count <= r.limit, nil
}

// ObserveDevice records userID as seen from ip.
func (r *RedisAdapter) ObserveDevice(ctx context.Context, ip, userID string) error {
	key := linkageKeyPrefix + ip
	if err := r.client.SAdd(ctx, key, userID).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, linkageKeyTTL).Err()
}

// CountLinkedAccounts returns the number of distinct accounts seen from ip.
func (r *RedisAdapter) CountLinkedAccounts(ctx context.Context, ip string) (int, error) {
	n, err := r.client.SCard(ctx, linkageKeyPrefix+ip).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
