package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore guards submissions and confirmations with SETNX locks and
// remembers the reference produced under a key.
type RedisIdempotencyStore struct {
	rdb      *redis.Client
	ttl      time.Duration
	scopeTTL map[string]time.Duration
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl, scopeTTL: map[string]time.Duration{}}
}

// WithScopeTTL keeps locks of one scope for a different duration.
func (s *RedisIdempotencyStore) WithScopeTTL(scope string, ttl time.Duration) *RedisIdempotencyStore {
	s.scopeTTL[scope] = ttl
	return s
}

func (s *RedisIdempotencyStore) ttlFor(scope string) time.Duration {
	if ttl, ok := s.scopeTTL[scope]; ok {
		return ttl
	}
	return s.ttl
}

func (s *RedisIdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, "idemp:"+scope+":"+key, "1", s.ttlFor(scope)).Result()
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, "idemp:"+scope+":"+key).Err()
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, "idemp:map:"+scope+":"+key, value, s.ttlFor(scope)).Err()
}

func (s *RedisIdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, "idemp:map:"+scope+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

var _ usecase.IdempotencyStore = (*RedisIdempotencyStore)(nil)
