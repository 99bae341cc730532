package cache

import (
	"context"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisDraftStore keeps one draft per reference; expiry sweeps abandoned checkouts.
type RedisDraftStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDraftStore(rdb *redis.Client, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{rdb: rdb, ttl: ttl}
}

func draftKey(ref string) string { return "checkout:draft:" + ref }

func (s *RedisDraftStore) Save(ctx context.Context, d domain.OrderDraft) error {
	return setJSON(ctx, s.rdb, draftKey(d.Reference), d, s.ttl)
}

func (s *RedisDraftStore) Get(ctx context.Context, ref string) (domain.OrderDraft, bool, error) {
	return decodeJSON[domain.OrderDraft](s.rdb.Get(ctx, draftKey(ref)).Result())
}

// Take uses GETDEL so concurrent confirmations cannot both read the draft.
func (s *RedisDraftStore) Take(ctx context.Context, ref string) (domain.OrderDraft, bool, error) {
	return decodeJSON[domain.OrderDraft](s.rdb.GetDel(ctx, draftKey(ref)).Result())
}

func (s *RedisDraftStore) Delete(ctx context.Context, ref string) error {
	return s.rdb.Del(ctx, draftKey(ref)).Err()
}

var _ usecase.DraftStore = (*RedisDraftStore)(nil)
