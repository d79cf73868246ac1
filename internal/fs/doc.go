// Package fs abstracts the file operations of the store writer so tests can
// inject failures.
//
// Production code uses fs.Default ([LocalFS]); tests wrap it in [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".pxp", fs.Fault{FailAfterBytes: 1024})
//
// Reads go through blobstore.Blob, which carries a context; these calls do not.
package fs
