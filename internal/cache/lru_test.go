package cache

import (
	"context"
	"testing"

	"github.com/hupe1980/pixpipe/internal/resource"
	"github.com/stretchr/testify/assert"
)

func TestLRU_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, nil)

	c.Set(ctx, Key{Path: "a", Block: 0}, make([]byte, 4))
	c.Set(ctx, Key{Path: "a", Block: 1}, make([]byte, 4))

	// Touch block 0 so block 1 is the eviction victim.
	_, ok := c.Get(ctx, Key{Path: "a", Block: 0})
	assert.True(t, ok)

	c.Set(ctx, Key{Path: "a", Block: 2}, make([]byte, 4))

	_, ok = c.Get(ctx, Key{Path: "a", Block: 1})
	assert.False(t, ok)
	_, ok = c.Get(ctx, Key{Path: "a", Block: 0})
	assert.True(t, ok)
	assert.Equal(t, int64(8), c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_OversizedNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(4, nil)
	c.Set(ctx, Key{Path: "a"}, make([]byte, 5))
	_, ok := c.Get(ctx, Key{Path: "a"})
	assert.False(t, ok)
}

func TestLRU_ResourceController(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 6})
	c := NewLRU(100, rc)

	c.Set(ctx, Key{Path: "a", Block: 0}, make([]byte, 4))
	c.Set(ctx, Key{Path: "a", Block: 1}, make([]byte, 4)) // refused by rc
	assert.Equal(t, int64(4), rc.MemoryUsage())

	_, ok := c.Get(ctx, Key{Path: "a", Block: 1})
	assert.False(t, ok)

	c.Invalidate(func(k Key) bool { return k.Path == "a" })
	assert.Equal(t, int64(0), c.Size())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}
