package cache

import (
	"context"
	"encoding/json"
	"sync"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisOutcomeBroadcaster carries checkout outcomes to every open tab (SSE stream)
// following the same reference, across API instances.
type RedisOutcomeBroadcaster struct {
	rdb *redis.Client
}

func NewRedisOutcomeBroadcaster(rdb *redis.Client) *RedisOutcomeBroadcaster {
	return &RedisOutcomeBroadcaster{rdb: rdb}
}

func outcomeChannel(ref string) string { return "checkout:outcome:" + ref }

func (b *RedisOutcomeBroadcaster) Publish(ctx context.Context, o domain.Outcome) error {
	body, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, outcomeChannel(o.Reference), body).Err()
}

// Subscribe returns once the subscription is active. The channel closes when ctx
// ends or stop is called.
func (b *RedisOutcomeBroadcaster) Subscribe(ctx context.Context, ref string) (<-chan domain.Outcome, func(), error) {
	ps := b.rdb.Subscribe(ctx, outcomeChannel(ref))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan domain.Outcome, 4)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				stop()
				return
			case <-done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var o domain.Outcome
				if err := json.Unmarshal([]byte(m.Payload), &o); err != nil {
					logging.FromCtx(ctx).Warn("bad outcome message", "channel", m.Channel, "err", err)
					continue
				}
				select {
				case out <- o:
				case <-done:
					return
				case <-ctx.Done():
					stop()
					return
				}
			}
		}
	}()
	return out, stop, nil
}

var _ usecase.OutcomeBroadcaster = (*RedisOutcomeBroadcaster)(nil)
