package cache

import (
	"context"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/redis/go-redis/v9"
)

type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(ref string) string { return "checkout:session:" + ref }

func (s *RedisSessionStore) Get(ctx context.Context, ref string) (domain.CheckoutSession, bool, error) {
	return decodeJSON[domain.CheckoutSession](s.rdb.Get(ctx, sessionKey(ref)).Result())
}

func (s *RedisSessionStore) Put(ctx context.Context, sess domain.CheckoutSession) error {
	return setJSON(ctx, s.rdb, sessionKey(sess.Reference), sess, s.ttl)
}

var _ usecase.SessionStore = (*RedisSessionStore)(nil)
