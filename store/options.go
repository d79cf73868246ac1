package store

import (
	"io"
	"log/slog"
	"math"

	"github.com/hupe1980/pixpipe/internal/resource"
)

type options struct {
	verify  bool
	sidecar bool
	rc      *resource.Controller
	logger  *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithVerifyChecksums controls whether Open checks every record body
// against its checksum while scanning. Read always verifies. Default true.
func WithVerifyChecksums(v bool) Option {
	return func(o *options) { o.verify = v }
}

// WithSidecar controls whether Open loads the sidecar index when it is
// present and valid instead of scanning. Default true.
func WithSidecar(v bool) Option {
	return func(o *options) { o.sidecar = v }
}

// WithResourceController bounds concurrent reads and read throughput.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithLogger sets the logger used for scan and sidecar events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{verify: true, sidecar: true}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return o
}
