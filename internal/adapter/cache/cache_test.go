package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func sampleDraft(ref string) domain.OrderDraft {
	return domain.NewOrderDraft(ref,
		[]domain.CartLine{{ProductID: "caja-a", Name: "Caja A", UnitPrice: decimal.RequireFromString("100.25"), Quantity: 1000, InkType: domain.InkOneColor, PaperType: "paper1"}},
		domain.Customer{FullName: "Ana Ruiz", Email: "ana@x.co", Phone: "+573000000000"},
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
}

func TestRedisDraftStore_TakeIsAtMostOnce(t *testing.T) {
	_, rdb := newRedis(t)
	s := NewRedisDraftStore(rdb, time.Hour)
	ctx := context.Background()
	d := sampleDraft("ORDER-1")

	require.NoError(t, s.Save(ctx, d))

	got, ok, err := s.Take(ctx, "ORDER-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d.Reference, got.Reference)
	assert.True(t, d.Total.Equal(got.Total))
	assert.Equal(t, d.Customer, got.Customer)
	assert.Equal(t, d.CreatedAt, got.CreatedAt)

	_, ok, err = s.Take(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisDraftStore_ConcurrentTakeHasOneWinner(t *testing.T) {
	_, rdb := newRedis(t)
	s := NewRedisDraftStore(rdb, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleDraft("ORDER-2")))

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := s.Take(ctx, "ORDER-2"); err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestRedisDraftStore_Expires(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisDraftStore(rdb, 24*time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleDraft("ORDER-3")))

	mr.FastForward(25 * time.Hour)

	_, ok, err := s.Get(ctx, "ORDER-3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSessionStore_RoundTrip(t *testing.T) {
	_, rdb := newRedis(t)
	s := NewRedisSessionStore(rdb, time.Hour)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "ORDER-4")
	require.NoError(t, err)
	assert.False(t, ok)

	sess := domain.CheckoutSession{Reference: "ORDER-4", State: domain.StateAwaitingExternalPayment, CheckoutURL: "https://checkout.wompi.co/l/abc"}
	require.NoError(t, s.Put(ctx, sess))

	got, ok, err := s.Get(ctx, "ORDER-4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sess.State, got.State)
	assert.Equal(t, sess.CheckoutURL, got.CheckoutURL)
}

func TestRedisIdempotencyStore_LockAndRecall(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisIdempotencyStore(rdb, time.Minute).WithScopeTTL("confirm", time.Hour)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "checkout", "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.TryLock(ctx, "checkout", "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Unlock(ctx, "checkout", "k1"))
	assert.False(t, mr.Exists("idemp:checkout:k1"))
	ok, err = s.TryLock(ctx, "checkout", "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := s.Recall(ctx, "checkout", "k1")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, s.Remember(ctx, "checkout", "k1", "ORDER-5"))
	v, found, err := s.Recall(ctx, "checkout", "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ORDER-5", v)

	_, err = s.TryLock(ctx, "confirm", "ORDER-5")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("idemp:checkout:k1"))
	assert.Equal(t, time.Hour, mr.TTL("idemp:confirm:ORDER-5"))
}

func TestRedisAttachmentIndex(t *testing.T) {
	_, rdb := newRedis(t)
	x := NewRedisAttachmentIndex(rdb, time.Hour)
	ctx := context.Background()
	a := domain.Attachment{Reference: "ORDER-6", StoredPath: "ORDER-6-1.png", OriginalName: "logo.png", MimeType: "image/png", Size: 10}

	require.NoError(t, x.Put(ctx, a))
	got, ok, err := x.Get(ctx, "ORDER-6")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.StoredPath, got.StoredPath)

	require.NoError(t, x.Delete(ctx, "ORDER-6"))
	_, ok, _ = x.Get(ctx, "ORDER-6")
	assert.False(t, ok)
}

func TestRedisOutcomeBroadcaster_DeliversToSubscriber(t *testing.T) {
	_, rdb := newRedis(t)
	b := NewRedisOutcomeBroadcaster(rdb)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, stop, err := b.Subscribe(ctx, "ORDER-7")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, b.Publish(ctx, domain.Outcome{Reference: "ORDER-7", State: domain.StateCompleted, Message: "done"}))
	require.NoError(t, b.Publish(ctx, domain.Outcome{Reference: "ORDER-8", State: domain.StateFailed}))

	select {
	case o := <-ch:
		assert.Equal(t, "ORDER-7", o.Reference)
		assert.Equal(t, domain.StateCompleted, o.State)
		assert.Equal(t, "done", o.Message)
	case <-ctx.Done():
		t.Fatal("no outcome received")
	}

	stop()
	for range ch {
	}
}
