package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCachePutGetInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	b := &Bill{
		ID:          7,
		BuildingID:  1,
		Room:        "P101",
		CustomerID:  3,
		Period:      6,
		Year:        2025,
		TotalAmount: 3500000,
		Status:      StatusUnpaid,
	}
	require.NoError(t, cache.Put(ctx, b))

	got, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)
	require.Equal(t, b.Room, got.Room)
	require.Equal(t, b.TotalAmount, got.TotalAmount)

	require.NoError(t, cache.Invalidate(ctx, 7))
	_, err = cache.Get(ctx, 7)
	require.ErrorIs(t, err, ErrBillNotFound)
}

func TestCacheGetMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	_, err := cache.Get(context.Background(), 99)
	require.ErrorIs(t, err, ErrBillNotFound)
}

func TestCachePublishUpdated(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	sub := mr.NewSubscriber()
	defer sub.Close()
	sub.Subscribe(UpdatedChannel)

	// The subscriber channel is unbuffered and miniredis only replies to
	// PUBLISH after delivery, so the publish must run concurrently with
	// the read below.
	errCh := make(chan error, 1)
	go func() { errCh <- cache.PublishUpdated(ctx, 42) }()

	msg := <-sub.Messages()
	require.NoError(t, <-errCh)
	require.Equal(t, UpdatedChannel, msg.Channel)

	var payload map[string]int64
	require.NoError(t, json.Unmarshal([]byte(msg.Message), &payload))
	require.Equal(t, int64(42), payload["billId"])
}
