// Package minio stores record stores in MinIO or any S3-compatible service
// (Ceph, Garage, SeaweedFS) through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	store := minioblob.NewStore(client, "datasets", "imagenet/")
//	loader, err := pixpipe.Open(ctx, cfg, pixpipe.WithBlobStore(store))
package minio
