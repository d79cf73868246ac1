package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It aliases
// os.ErrNotExist so local and remote misses compare equal.
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable named blobs such as record stores and their
// sidecar indexes. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts a streaming write; the blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a whole blob.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle. ReadAt follows io.ReaderAt semantics and must
// be safe for concurrent calls.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// WritableBlob is the write side of Create.
type WritableBlob interface {
	io.WriteCloser
	Sync() error
}

// Mappable is implemented by blobs backed by a memory mapping.
type Mappable interface {
	// Bytes returns the whole blob without copying. The slice is valid
	// until the blob is closed.
	Bytes() ([]byte, error)
}

// ReaderAt binds ctx to b so it can be handed to io.ReaderAt consumers.
func ReaderAt(ctx context.Context, b Blob) io.ReaderAt {
	return readerAt{ctx: ctx, b: b}
}

type readerAt struct {
	ctx context.Context
	b   Blob
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	return r.b.ReadAt(r.ctx, p, off)
}
