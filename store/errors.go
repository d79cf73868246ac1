package store

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt matches every CorruptError.
	ErrCorrupt = errors.New("store: corrupt")
	// ErrVersion is wrapped by a CorruptError for an unsupported format version.
	ErrVersion = errors.New("store: unsupported version")
	// ErrOutOfRange is returned for record numbers outside [0, Count).
	ErrOutOfRange = errors.New("store: record out of range")
	// ErrClosed is returned by operations on a closed store or writer.
	ErrClosed = errors.New("store: closed")
	// ErrRecordTooLarge is returned by Append for bodies over MaxRecordSize.
	ErrRecordTooLarge = errors.New("store: record too large")
)

// CorruptError reports the first invalid byte range found in a store.
type CorruptError struct {
	Offset int64
	Reason string
	err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("store: corrupt at offset %d: %s", e.Offset, e.Reason)
}

// Is makes every CorruptError match ErrCorrupt.
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

func (e *CorruptError) Unwrap() error {
	return e.err
}

func corruptf(off int64, format string, args ...any) *CorruptError {
	return &CorruptError{Offset: off, Reason: fmt.Sprintf(format, args...)}
}
