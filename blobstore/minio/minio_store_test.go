package minio

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/pixpipe/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "bucket", "datasets/")
	assert.Equal(t, "datasets/train.pxp", s.key("train.pxp"))
	assert.Equal(t, "train.pxp", NewStore(nil, "bucket", "").key("train.pxp"))
}

// TestMinioStore_Integration requires a running MinIO instance
// (MINIO_ENDPOINT, default localhost:9000).
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	ctx = context.Background()
	bucket := "test-pixpipe"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, fmt.Sprintf("run-%d/", time.Now().UnixNano()))

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "a.pxp", data))

	blob, err := store.Open(ctx, "a.pxp")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))

	w, err := store.Create(ctx, "b.pxp")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pxp", "b.pxp"}, names)

	require.NoError(t, store.Delete(ctx, "a.pxp"))
	require.NoError(t, store.Delete(ctx, "b.pxp"))
	_, err = store.Open(ctx, "a.pxp")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
