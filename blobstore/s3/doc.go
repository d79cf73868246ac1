// Package s3 stores record stores in Amazon S3.
//
//	store, err := s3.NewStoreFromEnv(ctx, "my-bucket", "datasets/")
//	loader, err := pixpipe.Open(ctx, pixpipe.Config{Path: "train.pxp", ...},
//	    pixpipe.WithBlobStore(store), pixpipe.WithBlockCache(512<<20))
//
// Reads are ranged GETs; Create streams a multipart upload through the
// s3/manager uploader.
package s3
