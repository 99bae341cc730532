package cache

import (
	"context"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisAttachmentIndex maps a reference to its stored attachment.
type RedisAttachmentIndex struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisAttachmentIndex(rdb *redis.Client, ttl time.Duration) *RedisAttachmentIndex {
	return &RedisAttachmentIndex{rdb: rdb, ttl: ttl}
}

func attachmentKey(ref string) string { return "checkout:attachment:" + ref }

func (x *RedisAttachmentIndex) Put(ctx context.Context, a domain.Attachment) error {
	return setJSON(ctx, x.rdb, attachmentKey(a.Reference), a, x.ttl)
}

func (x *RedisAttachmentIndex) Get(ctx context.Context, ref string) (domain.Attachment, bool, error) {
	return decodeJSON[domain.Attachment](x.rdb.Get(ctx, attachmentKey(ref)).Result())
}

func (x *RedisAttachmentIndex) Delete(ctx context.Context, ref string) error {
	return x.rdb.Del(ctx, attachmentKey(ref)).Err()
}

var _ usecase.AttachmentIndex = (*RedisAttachmentIndex)(nil)
