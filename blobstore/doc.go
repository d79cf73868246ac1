// Package blobstore abstracts where record stores live.
//
// A record store is one immutable blob; the loader reads it with positioned
// reads through [Blob]. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - [LocalStore]: a directory, read through a memory mapping
//   - [MemoryStore]: in-process, for tests and small datasets
//   - [CachingStore]: block cache in front of any other store
//   - s3.Store: Amazon S3 with ranged GETs and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
