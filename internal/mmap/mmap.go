package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// ErrClosed is returned by reads on a closed mapping.
var ErrClosed = errors.New("mmap: closed")

// File is a read-only memory mapping of a whole file.
type File struct {
	data   []byte
	f      *os.File
	closed atomic.Bool
}

// Open maps the file at path read-only. Empty files are valid and map to a
// nil slice.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &File{f: f}, nil
	}
	if int64(int(size)) != size {
		_ = f.Close()
		return nil, errors.New("mmap: file too large for address space")
	}

	data, err := mmap(f, int(size))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{data: data, f: f}, nil
}

// Bytes returns the mapped region. The slice is invalid after Close.
func (m *File) Bytes() []byte {
	return m.data
}

// Size returns the mapped length.
func (m *File) Size() int {
	return len(m.data)
}

// ReadAt implements io.ReaderAt over the mapping.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the region and closes the file. It is idempotent.
func (m *File) Close() error {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if m.data != nil {
		err = munmap(m.data)
		m.data = nil
	}
	if cerr := m.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
