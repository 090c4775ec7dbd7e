// Package redis keeps a short-lived record of recently applied event ids so
// redeliveries can be acknowledged without touching the relational store.
// The relational applied-event ledger stays authoritative.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "cashflow:applied:"

// store is the subset of the go-redis client the cache relies on
type store interface {
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// SeenCache remembers event ids for a bounded TTL
type SeenCache struct {
	rdb    store
	ttl    time.Duration
	logger *slog.Logger
}

// NewSeenCache creates a cache on top of an established client
func NewSeenCache(logger *slog.Logger, rdb *goredis.Client, ttl time.Duration) *SeenCache {
	return newSeenCache(logger, rdb, ttl)
}

func newSeenCache(logger *slog.Logger, rdb store, ttl time.Duration) *SeenCache {
	return &SeenCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With("component", "SeenCache"),
	}
}

// Seen reports whether id was marked within the TTL
func (c *SeenCache) Seen(ctx context.Context, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check seen event %s: %w", id, err)
	}
	return n > 0, nil
}

// MarkSeen records id. Call it only after the event's effect is committed.
func (c *SeenCache) MarkSeen(ctx context.Context, id string) error {
	if err := c.rdb.Set(ctx, keyPrefix+id, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event %s as seen: %w", id, err)
	}
	return nil
}

// NoopSeenCache is used when no Redis address is configured
type NoopSeenCache struct{}

func (NoopSeenCache) Seen(context.Context, string) (bool, error) { return false, nil }

func (NoopSeenCache) MarkSeen(context.Context, string) error { return nil }
