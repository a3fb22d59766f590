package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UpdatedChannel carries bill change events for interested consumers.
const UpdatedChannel = "bills:updated"

// Cache mirrors bill documents in Redis for cheap reads. Writers go
// through the repository; the mirror is refreshed after commit and a
// stale or missing entry is never an error.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds a bill read cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func billKey(id int64) string {
	return fmt.Sprintf("bills:%d", id)
}

// Put stores the bill document.
func (c *Cache) Put(ctx context.Context, b *Bill) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bill: %w", err)
	}
	return c.client.Set(ctx, billKey(b.ID), data, c.ttl).Err()
}

// Get returns the cached bill, or ErrBillNotFound on a miss.
func (c *Cache) Get(ctx context.Context, id int64) (*Bill, error) {
	data, err := c.client.Get(ctx, billKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrBillNotFound
	}
	if err != nil {
		return nil, err
	}
	var b Bill
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal bill: %w", err)
	}
	return &b, nil
}

// Invalidate drops the cached bill.
func (c *Cache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, billKey(id)).Err()
}

// PublishUpdated broadcasts a bill change event.
func (c *Cache) PublishUpdated(ctx context.Context, id int64) error {
	payload, err := json.Marshal(map[string]any{"billId": id})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.client.Publish(ctx, UpdatedChannel, payload).Err()
}
