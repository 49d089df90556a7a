package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fundnest/fundnest-api/internal/config"
)

const redisKeyPrefix = "fundnest:ratelimit:"

// admitScript keeps one sorted set per key, scored by request time in
// milliseconds. Members at or before now-window are dropped first.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= max then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local first = now
  if oldest[2] then
    first = tonumber(oldest[2])
  end
  return {0, count, first}
end

redis.call('ZADD', key, ARGV[1], ARGV[4])
redis.call('PEXPIRE', key, ARGV[2])
return {1, count + 1, 0}
`)

// RedisStore is a Store shared by every instance pointing at the same
// Redis. Keys expire with their window, so no sweep is needed.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func (s *RedisStore) Admit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Decision, error) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	res, err := admitScript.Run(ctx, s.client,
		[]string{redisKeyPrefix + key},
		nowMs, windowMs, max, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis admit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected redis reply %v", res)
	}

	d := Decision{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(res[2]+windowMs-nowMs) * time.Millisecond
	}
	return d, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
