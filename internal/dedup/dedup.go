// Package dedup remembers reconciled payment notifications in Redis.
package dedup

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL covers the gateway's redelivery window.
	DefaultTTL = 48 * time.Hour

	keyPrefix = "dedup:payment:"
)

type cmdable interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Guard is a payment.Deduper backed by Redis keys with a TTL.
type Guard struct {
	rdb cmdable
	ttl time.Duration
}

// New returns a Guard storing keys for ttl.
func New(rdb redis.Cmdable, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{rdb: rdb, ttl: ttl}
}

// NewClient connects to Redis at addr.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Seen reports whether key was marked.
func (g *Guard) Seen(ctx context.Context, key string) (bool, error) {
	n, err := g.rdb.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis exists")
	}
	return n > 0, nil
}

// Mark records key until the TTL elapses.
func (g *Guard) Mark(ctx context.Context, key string) error {
	if err := g.rdb.Set(ctx, keyPrefix+key, 1, g.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}
