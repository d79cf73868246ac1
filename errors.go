package pixpipe

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pixpipe/augment"
	"github.com/hupe1980/pixpipe/batch"
	"github.com/hupe1980/pixpipe/sampler"
	"github.com/hupe1980/pixpipe/store"
)

var (
	// ErrConfig matches every ConfigError.
	ErrConfig = errors.New("invalid config")
	// ErrCorruptStore is returned when the record store fails validation.
	// The underlying *store.CorruptError carries the offset.
	ErrCorruptStore = errors.New("corrupt record store")
	// ErrStreamExhausted is returned by NextBatch after the final batch of
	// a non-looping loader.
	ErrStreamExhausted = errors.New("stream exhausted")
	// ErrTooManySkips is returned by NextBatch when more consecutive records
	// were skipped than Config.MaxConsecutiveSkips allows.
	ErrTooManySkips = errors.New("too many consecutive skipped records")
	// ErrClosed is returned by operations on a closed loader.
	ErrClosed = errors.New("loader closed")
)

// ConfigError reports an invalid configuration field.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Is makes every ConfigError match ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func (e *ConfigError) Unwrap() error { return e.cause }

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}
	if errors.Is(err, batch.ErrExhausted) {
		return ErrStreamExhausted
	}
	if errors.Is(err, batch.ErrTooManySkips) {
		return fmt.Errorf("%w: %w", ErrTooManySkips, err)
	}

	// Sampler and augmentation rejections are configuration problems.
	switch {
	case errors.Is(err, sampler.ErrEmpty):
		return &ConfigError{Field: "split", Reason: "selects no records", cause: err}
	case errors.Is(err, sampler.ErrUnclassified):
		return &ConfigError{Field: "stratify", Reason: err.Error(), cause: err}
	case errors.Is(err, sampler.ErrInvalidConfig):
		return &ConfigError{Field: "sampler", Reason: err.Error(), cause: err}
	case errors.Is(err, augment.ErrInvalidSpec):
		return &ConfigError{Field: "augmentations", Reason: err.Error(), cause: err}
	}

	return err
}
