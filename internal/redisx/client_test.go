package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilCacheIsMiss(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.Set(ctx, OrderStatusKey(1), "Pending", time.Minute)
	_, ok := c.Get(ctx, OrderStatusKey(1))
	assert.False(t, ok)
	assert.True(t, c.Claim(ctx, DedupKey("billing", "e1"), time.Minute))
	c.Delete(ctx, DedupKey("billing", "e1"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "idem:checkout:4:abc", IdemCheckoutKey(4, "abc"))
	assert.Equal(t, "order_status:9", OrderStatusKey(9))
	assert.Equal(t, "dedup:billing:e1", DedupKey("billing", "e1"))
}
