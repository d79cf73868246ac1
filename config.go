package pixpipe

import (
	"runtime"

	"github.com/hupe1980/pixpipe/augment"
	"github.com/hupe1980/pixpipe/batch"
	"github.com/hupe1980/pixpipe/codec"
	"github.com/hupe1980/pixpipe/sampler"
)

// DefaultMaxConsecutiveSkips is used when Config.MaxConsecutiveSkips is 0.
const DefaultMaxConsecutiveSkips = 1024

// Config describes a loader. The zero value of each optional field selects
// its default; see Validate for the constraints.
type Config struct {
	// Path names the record store: a file path, or a blob name when a
	// BlobStore is configured.
	Path string `json:"path"`

	// BatchSize is the number of valid samples per batch.
	BatchSize int `json:"batch_size"`
	// Threads is the number of decode workers. 0 selects GOMAXPROCS.
	Threads int `json:"threads,omitempty"`
	// QueueCapacity bounds the decoded samples waiting for the consumer.
	// 0 selects BatchSize.
	QueueCapacity int `json:"queue_capacity,omitempty"`

	// Loop restarts the stream after each pass instead of ending it.
	Loop bool `json:"loop,omitempty"`
	// Shuffle visits records in a seeded random order, reshuffled every
	// pass unless FixedOrder is set.
	Shuffle    bool  `json:"shuffle,omitempty"`
	FixedOrder bool  `json:"fixed_order,omitempty"`
	Seed       int64 `json:"seed,omitempty"`
	// Stratify interleaves classes; ClassWeights sets their shares.
	Stratify     bool              `json:"stratify,omitempty"`
	ClassWeights map[int32]float64 `json:"class_weights,omitempty"`
	// Split restricts the loader to some folds of a K-fold partition.
	Split sampler.Split `json:"split,omitempty"`

	// Augmentations run in order on every sample.
	Augmentations []augment.Spec `json:"augmentations,omitempty"`
	// MinBoxArea is the fraction of a box that must survive a crop or
	// rotation. 0 selects augment.DefaultMinBoxArea.
	MinBoxArea float64 `json:"min_box_area,omitempty"`

	// Channels is 1, 3 or 4. 0 selects 3.
	Channels int `json:"channels,omitempty"`
	// AutoOrient applies the EXIF orientation of JPEG images.
	AutoOrient bool `json:"auto_orient,omitempty"`
	// Codec names the codec of box and point labels ("go-json" or "json").
	// Empty selects codec.Default; WithCodec takes precedence.
	Codec string `json:"codec,omitempty"`

	// PadPolicy handles samples of different sizes within a batch.
	PadPolicy batch.PadPolicy `json:"pad_policy,omitempty"`
	PadValue  float32         `json:"pad_value,omitempty"`
	// ResizeWidth and ResizeHeight are the final size under PadResize.
	ResizeWidth  int `json:"resize_width,omitempty"`
	ResizeHeight int `json:"resize_height,omitempty"`
	// DropLast drops a final batch shorter than BatchSize.
	DropLast bool `json:"drop_last,omitempty"`

	// MaxConsecutiveSkips bounds runs of skipped records before NextBatch
	// fails with ErrTooManySkips. 0 selects DefaultMaxConsecutiveSkips,
	// -1 disables the check.
	MaxConsecutiveSkips int `json:"max_consecutive_skips,omitempty"`

	// VerifyChecksums checks every record body while opening the store.
	// Reads are verified regardless.
	VerifyChecksums bool `json:"verify_checksums,omitempty"`
	// UseSidecar loads the store's sidecar index when it is current.
	UseSidecar bool `json:"use_sidecar,omitempty"`
}

// Validate checks cfg. It returns a *ConfigError.
func (cfg Config) Validate() error {
	switch {
	case cfg.Path == "":
		return configErrorf("path", "must be set")
	case cfg.BatchSize <= 0:
		return configErrorf("batch_size", "must be positive, got %d", cfg.BatchSize)
	case cfg.Threads < 0:
		return configErrorf("threads", "must not be negative, got %d", cfg.Threads)
	case cfg.QueueCapacity < 0:
		return configErrorf("queue_capacity", "must not be negative, got %d", cfg.QueueCapacity)
	case cfg.Channels != 0 && cfg.Channels != 1 && cfg.Channels != 3 && cfg.Channels != 4:
		return configErrorf("channels", "must be 1, 3 or 4, got %d", cfg.Channels)
	case cfg.MinBoxArea < 0 || cfg.MinBoxArea > 1:
		return configErrorf("min_box_area", "must be in [0, 1], got %v", cfg.MinBoxArea)
	case !cfg.PadPolicy.Valid():
		return configErrorf("pad_policy", "unknown policy %d", int(cfg.PadPolicy))
	case cfg.PadPolicy == batch.PadResize && (cfg.ResizeWidth <= 0 || cfg.ResizeHeight <= 0):
		return configErrorf("resize_width", "resize policy needs a positive size, got %dx%d", cfg.ResizeWidth, cfg.ResizeHeight)
	case cfg.MaxConsecutiveSkips < -1:
		return configErrorf("max_consecutive_skips", "must be >= -1, got %d", cfg.MaxConsecutiveSkips)
	case len(cfg.ClassWeights) > 0 && !cfg.Stratify:
		return configErrorf("class_weights", "require stratify")
	}
	if cfg.Codec != "" {
		if _, ok := codec.ByName(cfg.Codec); !ok {
			return configErrorf("codec", "unknown codec %q", cfg.Codec)
		}
	}
	for c, w := range cfg.ClassWeights {
		if w < 0 {
			return configErrorf("class_weights", "class %d has negative weight %v", c, w)
		}
	}
	if sp := cfg.Split; sp.Folds != 0 || len(sp.Keys) > 0 {
		if sp.Folds < 2 {
			return configErrorf("split", "needs at least 2 folds, got %d", sp.Folds)
		}
		if len(sp.Keys) == 0 {
			return configErrorf("split", "selects no folds")
		}
		for _, k := range sp.Keys {
			if k < 0 || k >= sp.Folds {
				return configErrorf("split", "fold %d not in [0, %d)", k, sp.Folds)
			}
		}
	}
	if _, err := augment.Build(cfg.Augmentations, cfg.MinBoxArea); err != nil {
		return translateError(err)
	}
	return nil
}

func (cfg Config) withDefaults() Config {
	if cfg.Threads == 0 {
		cfg.Threads = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = cfg.BatchSize
	}
	if cfg.Channels == 0 {
		cfg.Channels = 3
	}
	if cfg.MaxConsecutiveSkips == 0 {
		cfg.MaxConsecutiveSkips = DefaultMaxConsecutiveSkips
	}
	return cfg
}

func (cfg Config) samplerConfig() sampler.Config {
	return sampler.Config{
		Shuffle:    cfg.Shuffle,
		FixedOrder: cfg.FixedOrder,
		Loop:       cfg.Loop,
		Seed:       cfg.Seed,
		Stratify:   cfg.Stratify,
		Weights:    cfg.ClassWeights,
		Split:      cfg.Split,
	}
}

// KFold returns cfg restricted to the training or test side of fold. The
// test side never loops.
func (cfg Config) KFold(folds, fold int, train bool) Config {
	sc := cfg.samplerConfig().KFold(folds, fold, train)
	cfg.Split = sc.Split
	cfg.Loop = sc.Loop
	cfg.FixedOrder = sc.FixedOrder
	return cfg
}
