package limiter

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes, counts and conditionally adds in one round trip.
// KEYS[1] window key
// ARGV[1] now (ms)  ARGV[2] exclusive prune bound "(now-window"  ARGV[3] window (ms)
// ARGV[4] limit     ARGV[5] unique member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local current = redis.call('ZCARD', key)
if current < tonumber(ARGV[4]) then
  redis.call('ZADD', key, ARGV[1], ARGV[5])
  redis.call('PEXPIRE', key, ARGV[3])
end
return current + 1
`)

// RedisStore keeps one sorted set per identity, scored by request time in ms
type RedisStore struct {
	client redis.Scripter
}

// NewRedisStore creates Redis storage
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

// AtomicSlidingWindowIncrement runs the sliding window script.
// Members are "{now}-{uuid}" so concurrent requests in the same millisecond never collide.
func (s *RedisStore) AtomicSlidingWindowIncrement(ctx context.Context, key string, now time.Time, window time.Duration, limit int64) (int64, error) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	nowArg := strconv.FormatInt(nowMs, 10)

	return slidingWindowScript.Run(ctx, s.client, []string{key},
		nowArg,
		"("+strconv.FormatInt(nowMs-windowMs, 10),
		strconv.FormatInt(windowMs, 10),
		strconv.FormatInt(limit, 10),
		nowArg+"-"+uuid.NewString(),
	).Int64()
}
