// Package pixpipe loads batches of labeled images for model training.
//
// Images and their labels live in a compact append-only record store (see
// package store). A Loader draws record numbers from a sampler, lets a pool
// of workers read, decode and augment them, and assembles the results into
// dense batches for a single consumer.
//
// # Quick Start
//
//	ctx := context.Background()
//	l, err := pixpipe.Open(ctx, pixpipe.Config{
//	    Path:      "./train.pix",
//	    BatchSize: 32,
//	    Shuffle:   true,
//	    Loop:      true,
//	    Seed:      42,
//	    Augmentations: []augment.Spec{
//	        {Kind: augment.KindFlipH},
//	        {Kind: augment.KindRotate, Params: map[string]float64{"max_angle": 15}},
//	    },
//	    PadPolicy:    batch.PadResize,
//	    ResizeWidth:  224,
//	    ResizeHeight: 224,
//	})
//	if err != nil {
//	    return err
//	}
//	defer l.Close()
//
//	for {
//	    b, err := l.NextBatch(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    train(b.Images, b.Scalars) // [32,224,224,3] NHWC
//	}
//
// # Sampling
//
// Records are visited in store order, or shuffled with Config.Seed. With
// Config.Stratify each batch interleaves the classes in proportion to
// Config.ClassWeights (equal shares by default). Config.Split, or
// Config.KFold, restricts a loader to part of a K-fold partition.
//
// Batches are assembled in draw order no matter which worker finished
// first, so for a given seed and thread count every run yields the same
// record sequence.
//
// # Skipped Records
//
// Records whose image fails to decode, whose label is malformed, or whose
// labels augmentation removed entirely are skipped. They do not count
// toward the batch size; see Loader.Skipped and Loader.SkippedRecords. More
// than Config.MaxConsecutiveSkips skips in a row fail NextBatch with
// ErrTooManySkips.
//
// # Remote Stores
//
// WithBlobStore reads the store from any blobstore.BlobStore, including the
// S3 and MinIO backends; WithBlockCache keeps recently read blocks in memory.
package pixpipe
