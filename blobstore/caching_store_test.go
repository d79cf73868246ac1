package blobstore

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/pixpipe/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryStore
	reads atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, reads: &s.reads}, nil
}

type countingBlob struct {
	Blob
	reads *atomic.Int64
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.reads.Add(1)
	return b.Blob.ReadAt(ctx, p, off)
}

func TestCachingStore_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, inner.Put(ctx, "s", data))

	store := NewCachingStore(inner, cache.NewLRU(1<<20, nil), 16)
	blob, err := store.Open(ctx, "s")
	require.NoError(t, err)

	buf := make([]byte, 40)
	n, err := blob.ReadAt(ctx, buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, data[10:50], buf)
	assert.Equal(t, int64(1), inner.reads.Load())

	// Fully cached now.
	n, err = blob.ReadAt(ctx, buf, 12)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, data[12:52], buf)
	assert.Equal(t, int64(1), inner.reads.Load())

	// Tail read crosses EOF.
	tail := make([]byte, 10)
	n, err = blob.ReadAt(ctx, tail, 95)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, data[95:], tail[:n])

	_, err = blob.ReadAt(ctx, tail, 100)
	assert.Equal(t, io.EOF, err)
}

func TestCachingStore_PutInvalidates(t *testing.T) {
	ctx := context.Background()
	store := NewCachingStore(NewMemoryStore(), cache.NewLRU(1<<20, nil), 4)

	require.NoError(t, store.Put(ctx, "s", []byte("aaaa")))
	blob, err := store.Open(ctx, "s")
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "s", []byte("bbbb")))
	blob, err = store.Open(ctx, "s")
	require.NoError(t, err)
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(buf))
}
