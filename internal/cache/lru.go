package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/pixpipe/internal/resource"
)

// LRU is a size-bounded least-recently-used BlockCache.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   Key
	value []byte
}

// NewLRU creates a cache holding at most capacity bytes. When rc is non-nil
// every cached byte is also reserved against its memory limit.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns a cached block.
func (c *LRU) Get(_ context.Context, key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(el)
		return el.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches a block. Blocks larger than the capacity, or that the resource
// controller refuses, are not cached.
func (c *LRU) Set(_ context.Context, key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)
		ent := el.Value.(*entry)
		oldSize, newSize := int64(len(ent.value)), int64(len(b))
		if newSize > oldSize && !c.rc.TryAcquireMemory(newSize-oldSize) {
			return
		}
		if newSize < oldSize {
			c.rc.ReleaseMemory(oldSize - newSize)
		}
		c.size += newSize - oldSize
		ent.value = b
		c.evict()
		return
	}

	itemSize := int64(len(b))
	if itemSize > c.capacity {
		return
	}

	for c.size+itemSize > c.capacity {
		el := c.evictList.Back()
		if el == nil {
			break
		}
		c.removeElement(el)
	}

	if !c.rc.TryAcquireMemory(itemSize) {
		return
	}

	c.items[key] = c.evictList.PushFront(&entry{key: key, value: b})
	c.size += itemSize
}

// Invalidate removes entries matching the predicate.
func (c *LRU) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var doomed []*list.Element
	for key, el := range c.items {
		if predicate(key) {
			doomed = append(doomed, el)
		}
	}
	for _, el := range doomed {
		c.removeElement(el)
	}
}

// Stats returns hit and miss counts.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *LRU) evict() {
	for c.size > c.capacity {
		el := c.evictList.Back()
		if el == nil {
			return
		}
		c.removeElement(el)
	}
}

func (c *LRU) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	ent := el.Value.(*entry)
	delete(c.items, ent.key)
	n := int64(len(ent.value))
	c.size -= n
	c.rc.ReleaseMemory(n)
}
