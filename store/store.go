package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/hupe1980/pixpipe/blobstore"
	"github.com/hupe1980/pixpipe/internal/compress"
	"github.com/hupe1980/pixpipe/internal/hash"
	"github.com/hupe1980/pixpipe/record"
)

// Store is an open, read-only record store. All methods are safe for
// concurrent use; reads are positioned and share no cursor.
type Store struct {
	blob   blobstore.Blob
	ra     io.ReaderAt
	hdr    header
	idx    *Index
	opts   options
	closed atomic.Bool
}

// Open opens the store file at path. A sidecar index next to it is used when
// it matches the store.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	bs := blobstore.NewLocalStore(filepath.Dir(path))
	return OpenFrom(ctx, bs, filepath.Base(path), opts...)
}

// OpenFrom opens the store blob name in bs.
func OpenFrom(ctx context.Context, bs blobstore.BlobStore, name string, opts ...Option) (*Store, error) {
	blob, err := bs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	s, err := openBlob(ctx, blob, o, func(ctx context.Context, h header) *Index {
		return loadSidecar(ctx, bs, name, blob.Size(), h, o)
	})
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	return s, nil
}

// OpenBlob opens a store from an already open blob. The store takes
// ownership of blob and closes it on Close. No sidecar is consulted.
func OpenBlob(ctx context.Context, blob blobstore.Blob, opts ...Option) (*Store, error) {
	return openBlob(ctx, blob, applyOptions(opts), nil)
}

func openBlob(ctx context.Context, blob blobstore.Blob, o options, sidecar func(context.Context, header) *Index) (*Store, error) {
	s := &Store{blob: blob, opts: o}
	if m, ok := blob.(blobstore.Mappable); ok {
		b, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		s.ra = bytes.NewReader(b)
	}

	size := blob.Size()
	hb := make([]byte, min(size, headerSize))
	if _, err := s.readAt(ctx, hb, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return nil, err
	}
	s.hdr = h

	if o.sidecar && sidecar != nil {
		s.idx = sidecar(ctx, h)
	}
	if s.idx == nil {
		idx, err := s.scan(ctx, size)
		if err != nil {
			return nil, err
		}
		s.idx = idx
	}

	o.logger.Debug("store opened",
		"records", s.idx.Len(),
		"bytes", size,
		"checksums", h.flags&flagChecksums != 0,
	)
	return s, nil
}

func loadSidecar(ctx context.Context, bs blobstore.BlobStore, name string, size int64, h header, o options) *Index {
	blob, err := bs.Open(ctx, SidecarName(name))
	if err != nil {
		if !errors.Is(err, blobstore.ErrNotFound) {
			o.logger.Warn("sidecar unreadable", "name", SidecarName(name), "error", err)
		}
		return nil
	}
	defer blob.Close()

	b := make([]byte, blob.Size())
	if _, err := blob.ReadAt(ctx, b, 0); err != nil && !errors.Is(err, io.EOF) {
		o.logger.Warn("sidecar unreadable", "name", SidecarName(name), "error", err)
		return nil
	}
	idx, err := unmarshalSidecar(b, size, h.count)
	if err != nil {
		o.logger.Info("ignoring sidecar, rescanning", "name", SidecarName(name), "error", err)
		return nil
	}
	return idx
}

// scan walks every frame once, validating lengths and (when enabled)
// checksums.
func (s *Store) scan(ctx context.Context, size int64) (*Index, error) {
	checksums := s.opts.verify && s.hdr.flags&flagChecksums != 0
	entries := make([]Entry, 0, min(s.hdr.count, uint64(size/frameSize)))
	fb := make([]byte, frameSize)
	var body []byte

	off := int64(headerSize)
	for off < size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if size-off < frameSize {
			return nil, corruptf(off, "truncated frame (%d bytes left)", size-off)
		}
		if _, err := s.readAt(ctx, fb, off); err != nil {
			return nil, err
		}
		f, err := decodeFrame(fb, off)
		if err != nil {
			return nil, err
		}
		end := off + frameSize + int64(f.bodyLen)
		if end > size {
			return nil, corruptf(off, "truncated record: needs %d bytes, %d left", frameSize+int64(f.bodyLen), size-off)
		}
		if checksums {
			if cap(body) < int(f.bodyLen) {
				body = make([]byte, f.bodyLen)
			}
			body = body[:f.bodyLen]
			if _, err := s.readAt(ctx, body, off+frameSize); err != nil {
				return nil, err
			}
			if got := hash.CRC32C(body); got != f.crc {
				return nil, corruptf(off, "checksum mismatch (stored %08x, computed %08x)", f.crc, got)
			}
		}
		entries = append(entries, Entry{
			Record: len(entries),
			Offset: off,
			Length: uint32(frameSize + f.bodyLen),
			Kind:   f.kind,
			Class:  f.class,
		})
		next := padded(end)
		if next > size {
			return nil, corruptf(end, "truncated padding")
		}
		off = next
	}

	if uint64(len(entries)) != s.hdr.count {
		return nil, corruptf(16, "header count %d does not match %d records", s.hdr.count, len(entries))
	}
	return &Index{entries: entries, size: size}, nil
}

func (s *Store) readAt(ctx context.Context, p []byte, off int64) (int, error) {
	if s.ra != nil {
		return s.ra.ReadAt(p, off)
	}
	return s.blob.ReadAt(ctx, p, off)
}

// Count returns the number of records.
func (s *Store) Count() int { return s.idx.Len() }

// Index returns the entry table.
func (s *Store) Index() *Index { return s.idx }

// Size returns the store size in bytes.
func (s *Store) Size() int64 { return s.idx.size }

// Entry returns the index entry of record n.
func (s *Store) Entry(n int) (Entry, error) {
	if n < 0 || n >= s.idx.Len() {
		return Entry{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, n, s.idx.Len())
	}
	return s.idx.At(n), nil
}

// ReadRaw returns the framed bytes of record n without verifying them.
func (s *Store) ReadRaw(ctx context.Context, n int) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	e, err := s.Entry(n)
	if err != nil {
		return nil, err
	}
	if err := s.opts.rc.AcquireRead(ctx, int(e.Length)); err != nil {
		return nil, err
	}
	defer s.opts.rc.ReleaseRead()

	buf := make([]byte, e.Length)
	if _, err := s.readAt(ctx, buf, e.Offset); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, corruptf(e.Offset, "short read")
		}
		return nil, err
	}
	return buf, nil
}

// Read returns record n with its checksum verified and its image
// decompressed.
func (s *Store) Read(ctx context.Context, n int) (record.Record, error) {
	raw, err := s.ReadRaw(ctx, n)
	if err != nil {
		return record.Record{}, err
	}
	off := s.idx.At(n).Offset

	f, err := decodeFrame(raw, off)
	if err != nil {
		return record.Record{}, err
	}
	if int(f.bodyLen) != len(raw)-frameSize {
		return record.Record{}, corruptf(off, "frame length %d disagrees with index", f.bodyLen)
	}
	body := raw[frameSize:]
	if s.hdr.flags&flagChecksums != 0 {
		if got := hash.CRC32C(body); got != f.crc {
			return record.Record{}, corruptf(off, "checksum mismatch (stored %08x, computed %08x)", f.crc, got)
		}
	}

	img, err := compress.Decode(body[f.labelLen:], f.comp, int(f.imageLen))
	if err != nil {
		return record.Record{}, corruptf(off, "image payload: %v", err)
	}
	return record.Record{
		ID:    n,
		Kind:  f.kind,
		Class: f.class,
		Label: body[:f.labelLen:f.labelLen],
		Image: img,
	}, nil
}

// WriteSidecar persists the index as the sidecar of name in bs so later
// opens skip the scan.
func (s *Store) WriteSidecar(ctx context.Context, bs blobstore.BlobStore, name string) error {
	b, err := s.idx.marshalSidecar()
	if err != nil {
		return err
	}
	return bs.Put(ctx, SidecarName(name), b)
}

// Close releases the underlying blob. It is safe to call more than once.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.blob.Close()
}
