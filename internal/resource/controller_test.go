package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.True(t, c.TryAcquireMemory(50))
	require.True(t, c.TryAcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller

	require.True(t, c.TryAcquireMemory(1<<40))
	c.ReleaseMemory(1 << 40)
	require.NoError(t, c.AcquireRead(context.Background(), 1<<30))
	c.ReleaseRead()
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestController_ReadSlots(t *testing.T) {
	c := NewController(Config{MaxConcurrentReads: 1})
	ctx := context.Background()

	require.NoError(t, c.AcquireRead(ctx, 10))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireRead(blocked, 10), context.DeadlineExceeded)

	c.ReleaseRead()
	require.NoError(t, c.AcquireRead(ctx, 10))
	c.ReleaseRead()
}

func TestController_IOLimit(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})
	ctx := context.Background()

	// The first burst is free.
	require.NoError(t, c.AcquireIO(ctx, 1000))

	start := time.Now()
	require.NoError(t, c.AcquireIO(ctx, 100))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, c.AcquireIO(cancelled, 5000))
}
