package dedupe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "notifier:dedupe:"

// RedisStore shares marks across processes through SET NX PX.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

type markValue struct {
	MarkedAt time.Time `json:"markedAt"`
}

func (s *RedisStore) TryMark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	b, err := json.Marshal(markValue{MarkedAt: s.now().UTC()})
	if err != nil {
		return false, err
	}

	return s.rdb.SetNX(ctx, s.prefix+key, b, ttl).Result()
}
