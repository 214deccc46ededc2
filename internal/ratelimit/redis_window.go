package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "notifier:ratelimit"

// The key expiring is the window reset: the first INCR after expiry returns 1
// and arms a new expiry.
var hitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisWindow shares one counter across every process using the same key.
type RedisWindow struct {
	rdb *redis.Client
	key string
}

func NewRedisWindow(rdb *redis.Client, key string) *RedisWindow {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisWindow{rdb: rdb, key: key}
}

func (w *RedisWindow) Hit(ctx context.Context, window time.Duration) (int64, error) {
	return hitScript.Run(ctx, w.rdb, []string{w.key}, window.Milliseconds()).Int64()
}
