package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/pixpipe/internal/cache"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the cache granularity used when none is given.
const DefaultBlockSize = 64 << 10

// CachingStore wraps a BlobStore and serves reads through a block cache.
// It pays off for remote stores, where every worker read is a ranged GET.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore wraps inner. blockSize defaults to DefaultBlockSize.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{inner: b, cache: s.cache, name: name, blockSize: s.blockSize}, nil
}

func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(k cache.Key) bool { return k.Path == name })
}

// CachingBlob reads whole blocks from the inner blob and serves byte ranges
// out of the cache.
type CachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

func (b *CachingBlob) Close() error { return b.inner.Close() }
func (b *CachingBlob) Size() int64  { return b.inner.Size() }

func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.Size()
	if off < 0 || off >= size {
		return 0, io.EOF
	}

	want := p
	if off+int64(len(p)) > size {
		want = p[:size-off]
	}

	first := off / b.blockSize
	last := (off + int64(len(want)) - 1) / b.blockSize

	blocks, err := b.fetch(ctx, first, last)
	if err != nil {
		return 0, err
	}

	n := 0
	for i, data := range blocks {
		blkStart := (first + int64(i)) * b.blockSize
		lo := max(blkStart, off)
		hi := min(blkStart+int64(len(data)), off+int64(len(want)))
		if hi <= lo {
			continue
		}
		n += copy(want[lo-off:hi-off], data[lo-blkStart:hi-blkStart])
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fetch returns blocks first..last, loading contiguous runs of missing
// blocks with one inner read each.
func (b *CachingBlob) fetch(ctx context.Context, first, last int64) ([][]byte, error) {
	blocks := make([][]byte, last-first+1)

	type run struct{ start, count int64 }
	var missing []run
	for blk := first; blk <= last; blk++ {
		if data, ok := b.cache.Get(ctx, b.key(blk)); ok {
			blocks[blk-first] = data
			continue
		}
		if n := len(missing); n > 0 && missing[n-1].start+missing[n-1].count == blk {
			missing[n-1].count++
		} else {
			missing = append(missing, run{start: blk, count: 1})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, r := range missing {
		r := r
		g.Go(func() error {
			start := r.start * b.blockSize
			length := min(r.count*b.blockSize, b.Size()-start)
			buf := make([]byte, length)
			n, err := b.inner.ReadAt(gctx, buf, start)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]

			for i := int64(0); i < r.count; i++ {
				lo := i * b.blockSize
				if lo >= int64(len(buf)) {
					break
				}
				hi := min(lo+b.blockSize, int64(len(buf)))
				block := make([]byte, hi-lo)
				copy(block, buf[lo:hi])
				b.cache.Set(gctx, b.key(r.start+i), block)
				blocks[r.start+i-first] = block
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (b *CachingBlob) key(blk int64) cache.Key {
	return cache.Key{Path: b.name, Block: uint64(blk)}
}
