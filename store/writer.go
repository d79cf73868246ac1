package store

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/hupe1980/pixpipe/internal/compress"
	"github.com/hupe1980/pixpipe/internal/fs"
	"github.com/hupe1980/pixpipe/internal/hash"
	"github.com/hupe1980/pixpipe/record"
)

// WriterOptions configures Create.
type WriterOptions struct {
	// Compression applied to image payloads. Payloads that do not shrink
	// are stored uncompressed.
	Compression compress.Type
	// DisableChecksums writes zero checksums and clears the header flag.
	DisableChecksums bool
}

// Writer appends records to a new store file. The header record count is
// written on Close; a store whose writer was not closed fails to open.
type Writer struct {
	mu     sync.Mutex
	file   fs.File
	bw     *bufio.Writer
	path   string
	opts   WriterOptions
	off    int64
	count  uint64
	closed bool
	err    error
}

// Create creates (or truncates) the store file at path.
func Create(fsys fs.FileSystem, path string, opts WriterOptions) (*Writer, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if !opts.Compression.Valid() {
		return nil, fmt.Errorf("%w: %d", compress.ErrUnknownType, opts.Compression)
	}
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{file: f, bw: bufio.NewWriterSize(f, 1<<20), path: path, opts: opts}
	if _, err := w.bw.Write(w.header().encode()); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.off = headerSize
	return w, nil
}

func (w *Writer) header() header {
	h := header{version: storeVersion, count: w.count}
	if !w.opts.DisableChecksums {
		h.flags |= flagChecksums
	}
	return h
}

// Append writes rec and returns its record number. rec.ID is ignored.
func (w *Writer) Append(rec record.Record) (int, error) {
	if !rec.Kind.Valid() {
		return 0, fmt.Errorf("store: invalid label kind %d", rec.Kind)
	}
	img, t, err := compress.Encode(rec.Image, w.opts.Compression)
	if err != nil {
		return 0, err
	}
	bodyLen := int64(len(rec.Label)) + int64(len(img))
	if bodyLen > MaxRecordSize || int64(len(rec.Image)) > MaxRecordSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, bodyLen)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	if w.err != nil {
		return 0, w.err
	}

	f := frame{
		bodyLen:  uint32(bodyLen),
		kind:     rec.Kind,
		comp:     t,
		class:    rec.Class,
		labelLen: uint32(len(rec.Label)),
		imageLen: uint32(len(rec.Image)),
	}
	if !w.opts.DisableChecksums {
		f.crc = hash.UpdateCRC32C(hash.CRC32C(rec.Label), img)
	}

	var fb [frameSize]byte
	f.encode(fb[:])
	end := w.off + frameSize + bodyLen
	pad := make([]byte, padded(end)-end)

	for _, chunk := range [][]byte{fb[:], rec.Label, img, pad} {
		if _, err := w.bw.Write(chunk); err != nil {
			w.err = fmt.Errorf("store: append to %s: %w", w.path, err)
			return 0, w.err
		}
	}

	n := int(w.count)
	w.off = padded(end)
	w.count++
	return n, nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.count)
}

// Close flushes buffered records, writes the final header and syncs the
// file. Calling Close again returns nil.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if w.err != nil {
		_ = w.file.Close()
		return w.err
	}
	if err := w.bw.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	if _, err := w.file.WriteAt(w.header().encode(), 0); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
