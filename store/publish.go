package store

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/hupe1980/pixpipe/blobstore"
)

// Publish copies the finished store at path, and its sidecar when present,
// into bs under name.
func Publish(ctx context.Context, bs blobstore.BlobStore, name, path string) error {
	if err := copyFile(ctx, bs, name, path); err != nil {
		return err
	}
	err := copyFile(ctx, bs, SidecarName(name), SidecarName(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func copyFile(ctx context.Context, bs blobstore.BlobStore, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := bs.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		_ = bs.Delete(ctx, name)
		return err
	}
	return w.Close()
}
