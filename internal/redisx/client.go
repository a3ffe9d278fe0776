// Package redisx holds the Redis shortcuts in front of the database: checkout
// idempotency, order status caching and consumer dedup. The database stays the
// source of truth; every method degrades to a miss when Redis is absent or down.
package redisx

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const opTimeout = 2 * time.Second

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
}

// Cache wraps a client. A nil *Cache or nil client is a permanent miss.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) enabled() bool { return c != nil && c.rdb != nil }

// Get returns the value at key and whether it was found.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	v, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis: get %s: %v", key, err)
		}
		return "", false
	}
	return v, true
}

// Set stores value at key with ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("redis: set %s: %v", key, err)
	}
}

// Claim sets key only if absent and reports whether this caller set it.
// When Redis is unavailable every caller wins, leaving dedup to the database.
func (c *Cache) Claim(ctx context.Context, key string, ttl time.Duration) bool {
	if !c.enabled() {
		return true
	}
	ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		log.Printf("redis: claim %s: %v", key, err)
		return true
	}
	return ok
}

// Delete removes key, releasing a claim or dropping a cached value.
func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("redis: del %s: %v", key, err)
	}
}
