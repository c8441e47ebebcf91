package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/salonhq/booking-assistant/internal/bookings"
)

const defaultContextTTL = 24 * time.Hour

// ContextCache keeps the draft booking fields of in-flight conversations in
// Redis. It is a cache, not a store: on a miss the next model call
// re-extracts the fields from the full message history, so losing Redis
// loses nothing durable.
type ContextCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewContextCache creates the cache. A zero ttl falls back to 24h.
func NewContextCache(redisClient *redis.Client, ttl time.Duration) *ContextCache {
	if redisClient == nil {
		panic("engine: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultContextTTL
	}
	return &ContextCache{redis: redisClient, ttl: ttl}
}

type cachedContext struct {
	Fields bookings.Fields `json:"fields"`
}

// Load returns the cached draft fields. A miss returns zero fields, nil error.
func (c *ContextCache) Load(ctx context.Context, conversationID string) (bookings.Fields, error) {
	if c == nil {
		return bookings.Fields{}, nil
	}
	data, err := c.redis.Get(ctx, contextKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return bookings.Fields{}, nil
		}
		return bookings.Fields{}, fmt.Errorf("engine: load context: %w", err)
	}
	var cached cachedContext
	if err := json.Unmarshal(data, &cached); err != nil {
		return bookings.Fields{}, fmt.Errorf("engine: decode context: %w", err)
	}
	return cached.Fields, nil
}

// Save stores the draft fields with the configured TTL.
func (c *ContextCache) Save(ctx context.Context, conversationID string, fields bookings.Fields) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(cachedContext{Fields: fields})
	if err != nil {
		return fmt.Errorf("engine: encode context: %w", err)
	}
	if err := c.redis.Set(ctx, contextKey(conversationID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("engine: save context: %w", err)
	}
	return nil
}

// Invalidate drops the cached fields, used when a conversation is reset.
func (c *ContextCache) Invalidate(ctx context.Context, conversationID string) error {
	if c == nil {
		return nil
	}
	if err := c.redis.Del(ctx, contextKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("engine: invalidate context: %w", err)
	}
	return nil
}

func contextKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}
